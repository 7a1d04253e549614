package orchestration

// BuildDefaultRegistry constructs a Registry pre-populated with every
// canonical agent this module ships (spec.md §4.6): the initial-generation
// pipeline (SkeletonPlanner -> Activity/Meal/Transport in parallel ->
// EnrichmentAgent) and the chat-edit pipeline (IntentClassifier ->
// EditorAgent). Callers needing a subset can still build their own
// Registry and Register agents individually; this is a convenience for
// the common case of wanting everything.
func BuildDefaultRegistry() *Registry {
	r := NewRegistry()
	agents := []Agent{
		NewSkeletonPlanner(),
		NewActivityAgent(),
		NewMealAgent(),
		NewTransportAgent(),
		NewEnrichmentAgent(),
		NewIntentClassifier(),
		NewEditorAgent(),
	}
	for _, a := range agents {
		// Registration only fails on a priority/task overlap between two
		// enabled agents, which cannot happen for this fixed, internally
		// consistent set; a panic here would indicate a programming error
		// in this file, not a runtime condition callers need to handle.
		if err := r.Register(a); err != nil {
			panic(err)
		}
	}
	return r
}
