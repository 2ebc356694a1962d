package manager

import (
	"context"

	"localchat/internal/artifact"
	"localchat/internal/conversation"
)

// LoadModel validates a picked file and loads it, replacing any current
// model. The conversation is reset when the load starts.
func (m *Manager) LoadModel(ctx context.Context, ref artifact.FileRef) (artifact.Artifact, error) {
	art, err := artifact.Select(ref)
	if err != nil {
		return artifact.Artifact{}, err
	}
	if err := m.sess.Load(ctx, art); err != nil {
		return art, err
	}
	return art, nil
}

// LoadByName loads a model from the catalog. The extension is checked
// before the lookup so a bad name is reported as such.
func (m *Manager) LoadByName(ctx context.Context, name string) (artifact.Artifact, error) {
	if _, err := artifact.Select(artifact.FileRef{Name: name}); err != nil {
		return artifact.Artifact{}, err
	}
	e, err := m.cat.Lookup(name)
	if err != nil {
		// The directory may have changed since the last scan.
		if rerr := m.cat.Refresh(); rerr != nil {
			return artifact.Artifact{}, err
		}
		if e, err = m.cat.Lookup(name); err != nil {
			return artifact.Artifact{}, err
		}
	}
	return m.LoadModel(ctx, e.Ref())
}

// ChangeModel drops the current model and its conversation so a new one
// can be picked.
func (m *Manager) ChangeModel() { m.sess.Unload() }

// Submit sends one user message and returns the assistant reply.
func (m *Manager) Submit(ctx context.Context, text string) (conversation.Turn, error) {
	return m.pipe.Submit(ctx, text)
}

// SubmitStream is Submit with tokens delivered to onToken as they arrive.
func (m *Manager) SubmitStream(ctx context.Context, text string, onToken func(string) error) (conversation.Turn, error) {
	return m.pipe.SubmitStream(ctx, text, onToken)
}

// History returns the conversation in order.
func (m *Manager) History() []conversation.Turn { return m.conv.History() }

// ResetHistory clears the conversation but keeps the model loaded.
func (m *Manager) ResetHistory() { m.conv.Reset() }
