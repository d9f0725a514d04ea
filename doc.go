/*
Package statforge turns a free-text description into a validated tabletop RPG stat block.

A session classifies the description into an entity type, retrieves similar stat
blocks from the example corpus, drafts a record constrained to the type's schema
and then runs a bounded critique/revise loop. Every completed stage is
checkpointed, so an interrupted session resumes from its last stage. Finished
drafts are appended to the corpus and become retrieval examples for later
sessions.

# Usage

	backend, err := llm.New(ctx, llm.Settings{Provider: llm.ProviderOpenAI, Model: "gpt-4o-mini"})
	if err != nil {
		log.Fatal(err)
	}

	conv := statforge.New(generation.NewGateway(backend),
		statforge.WithStore(file.NewStore("")),
		statforge.WithCorpus(file.NewCorpus("corpus")),
	)

	state, err := conv.Convert(ctx, statforge.Request{
		Description:  "A metal scimitar that is engulfed by flame.",
		MaxRevisions: 1,
	})
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(state.CurrentDraft.Fields["name"])
*/
package statforge
