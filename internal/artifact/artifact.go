// Package artifact admits user-chosen model files. Admission is name-based:
// a file is accepted when its name carries the .gguf suffix. Content checks
// happen later, when the session loads the bytes.
package artifact

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"

	"localchat/internal/chaterr"
)

// Extension is the recognized model-file suffix (matched case-insensitively).
const Extension = ".gguf"

// ErrNoSelection is returned by file pickers when the user cancels. It is not
// a failure and front-ends treat it as "nothing to do".
var ErrNoSelection = errors.New("no artifact selected")

// Locator is an opaque reference to the staged model bytes. For local files
// it is a filesystem path.
type Locator string

// FileRef is what the file-selection collaborator reports for a pick.
type FileRef struct {
	Name    string
	Size    *int64 // nil when the picker could not report a size
	Locator Locator
}

// Artifact is an admitted candidate model file.
type Artifact struct {
	Name    string
	Size    *int64
	Locator Locator
}

// HasModelExtension reports whether name ends in .gguf, ignoring case.
func HasModelExtension(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), Extension)
}

// Select validates a pick and returns the artifact for it.
func Select(ref FileRef) (Artifact, error) {
	if !HasModelExtension(ref.Name) {
		return Artifact{}, chaterr.New(chaterr.InvalidFileType, "select",
			fmt.Sprintf("%q is not a %s file", ref.Name, Extension))
	}
	if ref.Size != nil && *ref.Size < 0 {
		return Artifact{}, chaterr.New(chaterr.ParseFailure, "select",
			fmt.Sprintf("size of %q is negative", ref.Name))
	}
	a := Artifact{Name: ref.Name, Locator: ref.Locator}
	if ref.Size != nil {
		sz := *ref.Size
		a.Size = &sz
	}
	return a, nil
}

// FromPath builds a FileRef for a local file. The size comes from stat. A
// blank path yields ErrNoSelection.
func FromPath(path string) (FileRef, error) {
	if strings.TrimSpace(path) == "" {
		return FileRef{}, ErrNoSelection
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return FileRef{}, fmt.Errorf("abs path: %w", err)
	}
	fi, err := os.Stat(abs)
	if err != nil {
		return FileRef{}, err
	}
	if fi.IsDir() {
		return FileRef{}, fmt.Errorf("%s is a directory", abs)
	}
	size := fi.Size()
	return FileRef{Name: fi.Name(), Size: &size, Locator: Locator(abs)}, nil
}

// Path returns the locator as a filesystem path.
func (a Artifact) Path() string { return string(a.Locator) }

// SizeMB returns the size in MiB, or -1 when unknown.
func (a Artifact) SizeMB() float64 {
	if a.Size == nil {
		return -1
	}
	return float64(*a.Size) / (1024 * 1024)
}

// DisplaySize renders the size the way the chat screen shows it ("12.34 MB").
// Unknown sizes render as "".
func (a Artifact) DisplaySize() string {
	if a.Size == nil {
		return ""
	}
	return fmt.Sprintf("%.2f MB", a.SizeMB())
}

// HumanSize renders the size in IEC units for terminal output.
func (a Artifact) HumanSize() string {
	if a.Size == nil || *a.Size < 0 {
		return "unknown size"
	}
	return humanize.IBytes(uint64(*a.Size))
}
