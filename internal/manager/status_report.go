package manager

import (
	"time"

	"localchat/internal/artifact"
	"localchat/internal/catalog"
	"localchat/internal/conversation"
	"localchat/internal/engine"
	"localchat/internal/session"
	"localchat/pkg/types"
)

// Snapshot returns the raw session view.
func (m *Manager) Snapshot() session.Snapshot { return m.sess.Snapshot() }

// Status builds the response for /status.
func (m *Manager) Status() types.StatusResponse {
	snap := m.sess.Snapshot()
	now := time.Now()
	resp := types.StatusResponse{
		State:            string(snap.State),
		Reason:           snap.Reason,
		SessionID:        snap.SessionID,
		BudgetMB:         snap.BudgetMB,
		EstimatedMB:      snap.EstimatedMB,
		QueueLen:         snap.Queued,
		Inflight:         snap.InFlight,
		MaxQueueDepth:    snap.MaxQueue,
		Turns:            m.conv.Len(),
		GenerationsTotal: snap.Generations,
		EngineBuilt:      engine.Built,
		UptimeSeconds:    int64(now.Sub(m.startTime).Seconds()),
		ServerTimeUnix:   now.Unix(),
	}
	if snap.Artifact != nil {
		lm := LoadedModel(*snap.Artifact)
		lm.Architecture = snap.Architecture
		lm.ModelName = snap.ModelName
		lm.Template = snap.Template
		lm.ContextLength = snap.ContextLength
		resp.Model = &lm
	}
	return resp
}

// LoadedModel converts an artifact to its API form.
func LoadedModel(a artifact.Artifact) types.LoadedModel {
	return types.LoadedModel{
		Name:        a.Name,
		SizeBytes:   a.Size,
		DisplaySize: a.DisplaySize(),
		Locator:     a.Path(),
	}
}

// Turn converts a conversation turn to its API form.
func Turn(t conversation.Turn) types.Turn {
	return types.Turn{Role: string(t.Role), Text: t.Text, Seq: t.Seq, At: t.At.UnixMilli()}
}

// Turns converts a slice of turns.
func Turns(ts []conversation.Turn) []types.Turn {
	out := make([]types.Turn, len(ts))
	for i, t := range ts {
		out[i] = Turn(t)
	}
	return out
}

// ModelFiles converts catalog entries to their API form.
func ModelFiles(es []catalog.Entry) []types.ModelFile {
	out := make([]types.ModelFile, len(es))
	for i, e := range es {
		size := e.Size
		out[i] = types.ModelFile{
			Name:        e.Name,
			SizeBytes:   e.Size,
			DisplaySize: artifact.Artifact{Name: e.Name, Size: &size}.DisplaySize(),
			Path:        e.Path,
			ModTime:     e.ModTime.Unix(),
		}
	}
	return out
}
