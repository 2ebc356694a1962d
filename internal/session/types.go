package session

import (
	"time"

	"localchat/internal/artifact"
)

// State is the lifecycle state of the session.
type State string

const (
	StateUnloaded State = "unloaded"
	StateLoading  State = "loading"
	StateReady    State = "ready"
	StateFailed   State = "failed"
)

// Snapshot is a read-only projection of the session.
type Snapshot struct {
	State     State
	Reason    string // set when State is failed
	SessionID string

	// Artifact is the loaded model, or the one being loaded.
	Artifact      *artifact.Artifact
	Architecture  string
	ModelName     string
	Template      string
	ContextLength uint64

	EstimatedMB int
	BudgetMB    int
	LoadedAt    time.Time
	LastUsed    time.Time

	InFlight    int
	Queued      int
	MaxQueue    int
	Generations uint64
}
