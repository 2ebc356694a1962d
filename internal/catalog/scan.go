// Package catalog lists the model files available in a local directory and
// keeps the list current while the directory changes.
package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"localchat/internal/artifact"
	"localchat/internal/common/fsutil"
)

// Entry is one candidate model file.
type Entry struct {
	Name    string
	Size    int64
	Path    string
	ModTime time.Time
}

// Ref converts the entry into a file reference for artifact.Select.
func (e Entry) Ref() artifact.FileRef {
	size := e.Size
	return artifact.FileRef{Name: e.Name, Size: &size, Locator: artifact.Locator(e.Path)}
}

// Scan lists *.gguf files (any case) directly inside dir, sorted by name.
// Subdirectories are not descended into.
func Scan(dir string) ([]Entry, error) {
	abs, err := fsutil.ResolveDir(dir)
	if err != nil {
		return nil, err
	}
	des, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var out []Entry
	for _, de := range des {
		if de.IsDir() || !artifact.HasModelExtension(de.Name()) {
			continue
		}
		fi, err := de.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			continue
		}
		if !fi.Mode().IsRegular() && fi.Mode()&os.ModeSymlink == 0 {
			continue
		}
		out = append(out, Entry{
			Name:    de.Name(),
			Size:    fi.Size(),
			Path:    filepath.Join(abs, de.Name()),
			ModTime: fi.ModTime(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
