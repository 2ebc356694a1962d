package catalog

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"localchat/internal/artifact"
	"localchat/internal/chaterr"
	"localchat/internal/common/fsutil"
)

const defaultDebounce = 250 * time.Millisecond

// Option customizes a Catalog.
type Option func(*Catalog)

// WithLogger sets the catalog logger.
func WithLogger(l zerolog.Logger) Option { return func(c *Catalog) { c.log = l } }

// WithDebounce sets how long the watcher waits for changes to settle
// before rescanning.
func WithDebounce(d time.Duration) Option {
	return func(c *Catalog) {
		if d > 0 {
			c.debounce = d
		}
	}
}

// Catalog is the scanned contents of one models directory. An empty
// directory setting yields an empty catalog.
type Catalog struct {
	dir      string
	debounce time.Duration
	log      zerolog.Logger

	mu      sync.RWMutex
	entries []Entry
	scanned time.Time
}

// New scans dir and returns the catalog.
func New(dir string, opts ...Option) (*Catalog, error) {
	c := &Catalog{dir: dir, debounce: defaultDebounce, log: zerolog.Nop()}
	for _, o := range opts {
		o(c)
	}
	if err := c.Refresh(); err != nil {
		return nil, err
	}
	return c, nil
}

// Dir is the configured directory, unexpanded.
func (c *Catalog) Dir() string { return c.dir }

// Refresh rescans the directory.
func (c *Catalog) Refresh() error {
	if c.dir == "" {
		return nil
	}
	entries, err := Scan(c.dir)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.entries = entries
	c.scanned = time.Now()
	c.mu.Unlock()
	c.log.Debug().Str("dir", c.dir).Int("models", len(entries)).Msg("catalog scanned")
	return nil
}

// List returns a copy of the current entries.
func (c *Catalog) List() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Lookup finds an entry by file name. An exact match wins over a
// case-insensitive one.
func (c *Catalog) Lookup(name string) (Entry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var fold *Entry
	for i := range c.entries {
		e := &c.entries[i]
		if e.Name == name {
			return *e, nil
		}
		if fold == nil && strings.EqualFold(e.Name, name) {
			fold = e
		}
	}
	if fold != nil {
		return *fold, nil
	}
	return Entry{}, chaterr.New(chaterr.ModelNotFound, "lookup", fmt.Sprintf("no model named %q", name))
}

// Watch keeps the catalog current until ctx is done. Bursts of changes to
// model files are coalesced into one rescan.
func (c *Catalog) Watch(ctx context.Context) error {
	if c.dir == "" {
		<-ctx.Done()
		return nil
	}
	dir, err := fsutil.ResolveDir(c.dir)
	if err != nil {
		return err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("new watcher: %w", err)
	}
	defer w.Close()
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	c.log.Info().Str("dir", dir).Msg("watching models directory")

	var timer *time.Timer
	rescan := make(chan struct{}, 1)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !relevant(ev) {
				continue
			}
			if timer == nil {
				timer = time.AfterFunc(c.debounce, func() {
					select {
					case rescan <- struct{}{}:
					default:
					}
				})
			} else {
				timer.Reset(c.debounce)
			}
		case <-rescan:
			if err := c.Refresh(); err != nil {
				c.log.Warn().Err(err).Str("dir", dir).Msg("catalog rescan failed")
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				_ = c.Refresh()
				continue
			}
			c.log.Warn().Err(err).Msg("catalog watcher error")
		}
	}
}

func relevant(ev fsnotify.Event) bool {
	if !artifact.HasModelExtension(filepath.Base(ev.Name)) {
		return false
	}
	return ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0
}
