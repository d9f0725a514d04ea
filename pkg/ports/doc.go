/*
Package ports defines the driven ports (interfaces) of the conversion workflow.

These interfaces decouple the workflow from model providers, the example
corpus, and durable session storage.

# Key Interfaces

  - GenerationGateway: structured and free text generation against a model backend.
  - RetrievalGateway: top-k similarity search over the example corpus, scoped by entity type.
  - Corpus / CorpusIndexer: durable storage of finished stat blocks and their search index.
  - StateStore: persisting and loading WorkflowState checkpoints.
  - DistributedLocker: distributed locking for concurrent access to one session.
*/
package ports
