package domain

// ScoredChunk is a similarity hit inside a single document index.
type ScoredChunk struct {
	Chunk Chunk
	Score float64
}

// RetrievedChunk binds a chunk to the document it was retrieved from.
// Values are built fresh per query and never shared between queries.
type RetrievedChunk struct {
	Chunk  Chunk   `json:"chunk"`
	Source string  `json:"source"`
	Score  float64 `json:"score"`
}

type Answer struct {
	Text              string           `json:"answer"`
	Sources           []RetrievedChunk `json:"sources"`
	FollowUpQuestions []string         `json:"followup_questions"`
}
