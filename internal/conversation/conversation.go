// Package conversation holds the ordered turn log of the active model session.
package conversation

import (
	"sync"
	"time"
)

// Role identifies the speaker of a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message. Turns are values; the log never mutates one after
// it has been appended.
type Turn struct {
	Role Role
	Text string
	// Seq is assigned by Log.Append and strictly increases within a log
	// until the next Reset.
	Seq uint64
	At  time.Time
}

// Log is an append-only ordered sequence of turns. Safe for concurrent use.
type Log struct {
	mu    sync.RWMutex
	turns []Turn
	seq   uint64
	epoch uint64
	now   func() time.Time
}

// New returns an empty log.
func New() *Log { return &Log{now: time.Now} }

// Append stamps t with the next sequence number, adds it to the tail and
// returns the stored turn.
func (l *Log) Append(t Turn) Turn {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.appendLocked(t)
}

// AppendIf appends t only if the log has not been reset since Epoch returned
// epoch. ok is false when t was dropped.
func (l *Log) AppendIf(epoch uint64, t Turn) (Turn, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.epoch != epoch {
		return Turn{}, false
	}
	return l.appendLocked(t), true
}

// Epoch identifies the log's contents between resets.
func (l *Log) Epoch() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.epoch
}

func (l *Log) appendLocked(t Turn) Turn {
	l.seq++
	t.Seq = l.seq
	if t.At.IsZero() {
		t.At = l.now()
	}
	l.turns = append(l.turns, t)
	return t
}

// History returns a copy of the turns in insertion order.
func (l *Log) History() []Turn {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Turn, len(l.turns))
	copy(out, l.turns)
	return out
}

// Len is the number of turns.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.turns)
}

// Reset drops every turn and restarts numbering. Turns still being produced
// for the old contents can no longer be added with AppendIf.
func (l *Log) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.epoch++
	if len(l.turns) == 0 && l.seq == 0 {
		return
	}
	l.turns = nil
	l.seq = 0
}
