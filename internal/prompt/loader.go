package prompt

import (
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/Conceptual-Machines/blessing-api/internal/models"
	"github.com/Conceptual-Machines/blessing-api/pkg/embedded"
)

// Loader reads prompt layers from a file tree laid out as
// theme.txt, relationship/<rel>.txt, style/<style>.txt and length/<length>.txt
type Loader struct {
	files fs.FS
}

// NewPromptLoader reads the layers embedded in the binary
func NewPromptLoader() *Loader {
	return &Loader{files: embedded.Prompts()}
}

// NewPromptLoaderFS reads the layers from files, e.g. an fstest.MapFS
func NewPromptLoaderFS(files fs.FS) *Loader {
	return &Loader{files: files}
}

// GetTheme loads the festival framing shared by every prompt
func (l *Loader) GetTheme() (string, error) {
	return l.read("theme.txt")
}

// GetRelationship loads the register for addressing rel
func (l *Loader) GetRelationship(rel models.Relationship) (string, error) {
	return l.read(path.Join("relationship", string(rel)+".txt"))
}

// GetStyle loads the writing style for a variant
func (l *Loader) GetStyle(style models.Style) (string, error) {
	return l.read(path.Join("style", string(style)+".txt"))
}

// GetLength loads the length constraint
func (l *Loader) GetLength(length models.Length) (string, error) {
	return l.read(path.Join("length", string(length)+".txt"))
}

func (l *Loader) read(name string) (string, error) {
	data, err := fs.ReadFile(l.files, name)
	if err != nil {
		return "", fmt.Errorf("failed to load prompt %s: %w", name, err)
	}
	return strings.TrimSpace(string(data)), nil
}
