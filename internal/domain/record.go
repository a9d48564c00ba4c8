package domain

import "time"

// Record describes one successful generation. Records are immutable once
// built; Params is a private copy of the draft at submit time.
type Record[P Params] struct {
	ID          string    `json:"id"`
	ArtifactRef string    `json:"artifact_ref"`
	Prompt      string    `json:"prompt"`
	Params      P         `json:"params"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewRecord builds a record from a resolved artifact reference.
func NewRecord[P Params](id, artifactRef string, params P, createdAt time.Time) Record[P] {
	return Record[P]{
		ID:          id,
		ArtifactRef: artifactRef,
		Prompt:      params.PromptText(),
		Params:      params.Clone().(P),
		CreatedAt:   createdAt,
	}
}
