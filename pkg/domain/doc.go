/*
Package domain contains the core domain models of the statforge workflow.

It defines the entity kinds a description can be classified into, the typed
records produced for them, and the session-scoped WorkflowState that the engine
threads through its stages. This package is kept free of I/O and persistence.

# Key Entities

  - EntityType: The enumerated category of a description (Magic Item, Spell, ...).
  - Record: A schema-conformant stat block, tagged by its EntityType.
  - WorkflowState: The checkpointable snapshot of one session (stage, draft, critique, revisions).
  - Stage: A step of the generation workflow (classify, retrieve, generate, critique, revise, done).
*/
package domain
