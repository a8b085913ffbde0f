package model

// ResearchStatus tags the outcome of a research run. A run that found
// nothing or that lost synthesis is not an error; callers branch on the
// status instead.
type ResearchStatus string

const (
	// ResearchFull means search and all synthesis calls succeeded and the
	// session was updated.
	ResearchFull ResearchStatus = "full"
	// ResearchPartial means search succeeded but synthesis failed; raw
	// results are returned and the session is left untouched.
	ResearchPartial ResearchStatus = "partial"
	// ResearchNoResults means the provider returned zero results; synthesis
	// is skipped and the session is left untouched.
	ResearchNoResults ResearchStatus = "no_results"
)
