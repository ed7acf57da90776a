// Package loader reads Docker documentation files into knowledge documents.
package loader

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ubuitrago/ContainerShip/internal/domain/entities"
)

// frontMatter is the subset of docs page metadata worth indexing.
type frontMatter struct {
	Title       string   `yaml:"title"`
	Description string   `yaml:"description"`
	Keywords    any      `yaml:"keywords"`
	Aliases     []string `yaml:"aliases"`
}

// MarkdownLoader loads markdown pages, folding YAML front matter into the text.
type MarkdownLoader struct{}

// NewMarkdownLoader creates a markdown document loader.
func NewMarkdownLoader() *MarkdownLoader {
	return &MarkdownLoader{}
}

// Load reads the page at path. A title or description from front matter
// is prepended so it is embedded with the body.
func (l *MarkdownLoader) Load(ctx context.Context, path string) (*entities.Document, error) {
	data, info, err := readFile(path)
	if err != nil {
		return nil, err
	}

	meta, body, err := splitFrontMatter(data)
	if err != nil {
		return nil, fmt.Errorf("parsing front matter of %s: %w", path, err)
	}

	var sb strings.Builder
	if meta.Title != "" {
		sb.WriteString("# " + meta.Title + "\n\n")
	}
	if meta.Description != "" {
		sb.WriteString(meta.Description + "\n\n")
	}
	sb.Write(body)

	return newDocument(path, sb.String(), info.ModTime()), nil
}

// SupportedExtensions returns file extensions this loader handles.
func (l *MarkdownLoader) SupportedExtensions() []string {
	return []string{".md", ".markdown"}
}

// TextLoader loads plain text files as-is.
type TextLoader struct{}

// NewTextLoader creates a new text document loader.
func NewTextLoader() *TextLoader {
	return &TextLoader{}
}

// Load reads a text document from the given path.
func (l *TextLoader) Load(ctx context.Context, path string) (*entities.Document, error) {
	data, info, err := readFile(path)
	if err != nil {
		return nil, err
	}
	return newDocument(path, string(data), info.ModTime()), nil
}

// SupportedExtensions returns file extensions this loader handles.
func (l *TextLoader) SupportedExtensions() []string {
	return []string{".txt"}
}

type fileLoader interface {
	Load(context.Context, string) (*entities.Document, error)
	SupportedExtensions() []string
}

// MultiLoader dispatches on file extension.
type MultiLoader struct {
	loaders map[string]fileLoader
	exts    []string
}

// NewMultiLoader creates a loader for markdown and text docs.
func NewMultiLoader() *MultiLoader {
	m := &MultiLoader{loaders: make(map[string]fileLoader)}
	for _, l := range []fileLoader{NewMarkdownLoader(), NewTextLoader()} {
		for _, ext := range l.SupportedExtensions() {
			m.loaders[ext] = l
			m.exts = append(m.exts, ext)
		}
	}
	return m
}

// Load dispatches to the appropriate loader based on extension.
func (m *MultiLoader) Load(ctx context.Context, path string) (*entities.Document, error) {
	ext := strings.ToLower(filepath.Ext(path))
	loader, ok := m.loaders[ext]
	if !ok {
		return nil, fmt.Errorf("unsupported document type %q", ext)
	}
	return loader.Load(ctx, path)
}

// SupportedExtensions returns all supported extensions.
func (m *MultiLoader) SupportedExtensions() []string {
	return append([]string(nil), m.exts...)
}

func readFile(path string) ([]byte, os.FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	return data, info, nil
}

func newDocument(path, content string, modTime time.Time) *entities.Document {
	return &entities.Document{
		ID:        entities.DocumentID(path),
		Name:      filepath.Base(path),
		Path:      path,
		Content:   content,
		CreatedAt: modTime,
		UpdatedAt: time.Now(),
	}
}

var fmDelim = []byte("---")

// splitFrontMatter separates a leading "---" YAML block from the body.
func splitFrontMatter(data []byte) (frontMatter, []byte, error) {
	var meta frontMatter
	trimmed := bytes.TrimPrefix(data, []byte("\ufeff"))
	if !bytes.HasPrefix(trimmed, fmDelim) {
		return meta, data, nil
	}

	rest := trimmed[len(fmDelim):]
	nl := bytes.IndexByte(rest, '\n')
	if nl < 0 || len(bytes.TrimSpace(rest[:nl])) != 0 {
		return meta, data, nil
	}
	rest = rest[nl+1:]

	end := bytes.Index(rest, []byte("\n---"))
	if end < 0 {
		return meta, data, nil
	}
	if err := yaml.Unmarshal(rest[:end], &meta); err != nil {
		return meta, nil, err
	}

	body := rest[end+len("\n---"):]
	if i := bytes.IndexByte(body, '\n'); i >= 0 {
		body = body[i+1:]
	} else {
		body = nil
	}
	return meta, bytes.TrimLeft(body, "\n"), nil
}
