package conversation

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppend_AssignsIncreasingSeq(t *testing.T) {
	l := New()
	a := l.Append(Turn{Role: RoleUser, Text: "hi"})
	b := l.Append(Turn{Role: RoleAssistant, Text: "hello"})
	c := l.Append(Turn{Role: RoleUser, Text: "again", Seq: 99})
	assert.Equal(t, uint64(1), a.Seq)
	assert.Equal(t, uint64(2), b.Seq)
	assert.Equal(t, uint64(3), c.Seq, "caller-provided Seq is overwritten")
	assert.False(t, a.At.IsZero())

	h := l.History()
	require.Len(t, h, 3)
	assert.Equal(t, []Role{RoleUser, RoleAssistant, RoleUser}, []Role{h[0].Role, h[1].Role, h[2].Role})
	assert.Equal(t, "hi", h[0].Text)
}

func TestAppend_KeepsProvidedTimestamp(t *testing.T) {
	l := New()
	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	got := l.Append(Turn{Role: RoleUser, Text: "x", At: at})
	assert.Equal(t, at, got.At)
}

func TestHistory_ReturnsCopy(t *testing.T) {
	l := New()
	l.Append(Turn{Role: RoleUser, Text: "original"})
	h := l.History()
	h[0].Text = "mutated"
	assert.Equal(t, "original", l.History()[0].Text)
}

func TestReset(t *testing.T) {
	l := New()
	l.Reset()
	assert.Empty(t, l.History(), "reset on empty log is a no-op")

	l.Append(Turn{Role: RoleUser, Text: "a"})
	l.Append(Turn{Role: RoleAssistant, Text: "b"})
	l.Reset()
	assert.Empty(t, l.History())
	assert.Equal(t, 0, l.Len())

	next := l.Append(Turn{Role: RoleUser, Text: "c"})
	assert.Equal(t, uint64(1), next.Seq, "numbering restarts for a new conversation")
}

func TestAppendIf_DropsAfterReset(t *testing.T) {
	l := New()
	epoch := l.Epoch()
	_, ok := l.AppendIf(epoch, Turn{Role: RoleUser, Text: "q"})
	require.True(t, ok)

	l.Reset()
	_, ok = l.AppendIf(epoch, Turn{Role: RoleAssistant, Text: "late"})
	assert.False(t, ok, "a reply for the old conversation must not land in the new one")
	assert.Zero(t, l.Len())

	l.Reset()
	assert.NotEqual(t, epoch, l.Epoch(), "every reset starts a new epoch, even on an empty log")
	got, ok := l.AppendIf(l.Epoch(), Turn{Role: RoleUser, Text: "fresh"})
	require.True(t, ok)
	assert.Equal(t, uint64(1), got.Seq)
}

func TestConcurrentAppend_SeqUnique(t *testing.T) {
	l := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Append(Turn{Role: RoleUser, Text: "x"})
			_ = l.History()
		}()
	}
	wg.Wait()
	h := l.History()
	require.Len(t, h, 50)
	for i, turn := range h {
		assert.Equal(t, uint64(i+1), turn.Seq)
	}
}
