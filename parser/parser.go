// Package parser turns raw file bytes into a Document and its ordered chunks.
//
// Only text content is supported. Splitting uses the langchaingo text
// splitters: recursive character, markdown aware, or token based.
package parser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/tmc/langchaingo/textsplitter"

	"github.com/poiesic/kbingest/core"
)

// Splitting strategies.
const (
	StrategyAuto      = "auto"
	StrategyRecursive = "recursive"
	StrategyMarkdown  = "markdown"
	StrategyToken     = "token"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 100
)

var (
	errNotText   = errors.New("content is not valid UTF-8 text")
	errNoContent = errors.New("no content")
)

// Options controls how a file is split. A zero ChunkSize uses
// DefaultChunkSize; a zero ChunkOverlap means no overlap. Callers validate
// that the overlap is smaller than the chunk size; an overlap that is not is
// clamped to half the chunk size.
type Options struct {
	Strategy     string
	ChunkSize    int
	ChunkOverlap int
}

func (o Options) withDefaults() Options {
	if o.Strategy == "" {
		o.Strategy = StrategyAuto
	}
	if o.ChunkSize <= 0 {
		o.ChunkSize = DefaultChunkSize
	}
	if o.ChunkOverlap < 0 || o.ChunkOverlap >= o.ChunkSize {
		o.ChunkOverlap = min(DefaultChunkOverlap, o.ChunkSize/2)
	}
	return o
}

// Parser converts raw bytes into a Document and its chunks in index order.
// Failures are returned as *ParseError.
type Parser interface {
	Parse(ctx context.Context, data []byte, filename string, opts Options) (*core.Document, []*core.Chunk, error)
}

// TextParser splits UTF-8 text files.
type TextParser struct {
	logger *slog.Logger
}

var _ Parser = (*TextParser)(nil)

// NewTextParser creates a text parser. A nil logger uses slog.Default().
func NewTextParser(logger *slog.Logger) *TextParser {
	if logger == nil {
		logger = slog.Default()
	}
	return &TextParser{logger: logger.With("component", "parser")}
}

// Parse splits data into chunks. Chunks carry only content and index; the
// caller assigns identities.
func (p *TextParser) Parse(ctx context.Context, data []byte, filename string, opts Options) (*core.Document, []*core.Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	opts = opts.withDefaults()

	if !utf8.Valid(data) {
		return nil, nil, &ParseError{Filename: filename, Err: errNotText}
	}
	text := string(data)
	if strings.TrimSpace(text) == "" {
		return nil, nil, &ParseError{Filename: filename, Err: errNoContent}
	}

	strategy := resolveStrategy(opts.Strategy, filename)
	splitter, err := newSplitter(strategy, opts)
	if err != nil {
		return nil, nil, &ParseError{Filename: filename, Err: err}
	}

	parts, err := splitter.SplitText(text)
	if err != nil {
		return nil, nil, &ParseError{Filename: filename, Err: fmt.Errorf("split with %s: %w", strategy, err)}
	}

	chunks := make([]*core.Chunk, 0, len(parts))
	for _, part := range parts {
		if strings.TrimSpace(part) == "" {
			continue
		}
		chunks = append(chunks, &core.Chunk{Content: part, ChunkIndex: len(chunks)})
	}
	if len(chunks) == 0 {
		return nil, nil, &ParseError{Filename: filename, Err: errNoContent}
	}

	doc := &core.Document{
		Content:     text,
		SourcePath:  filename,
		ContentHash: core.HashContent(data),
		Metadata: map[string]string{
			"filename": filepath.Base(filename),
			"strategy": strategy,
		},
	}

	p.logger.Debug("parsed file", "filename", filename, "strategy", strategy, "chunks", len(chunks))
	return doc, chunks, nil
}

// resolveStrategy picks markdown splitting for markdown files under "auto".
func resolveStrategy(strategy, filename string) string {
	strategy = strings.ToLower(strings.TrimSpace(strategy))
	if strategy != StrategyAuto {
		return strategy
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".md", ".markdown", ".mdx":
		return StrategyMarkdown
	default:
		return StrategyRecursive
	}
}

func newSplitter(strategy string, opts Options) (textsplitter.TextSplitter, error) {
	size := textsplitter.WithChunkSize(opts.ChunkSize)
	overlap := textsplitter.WithChunkOverlap(opts.ChunkOverlap)

	switch strategy {
	case StrategyRecursive:
		return textsplitter.NewRecursiveCharacter(size, overlap), nil
	case StrategyMarkdown:
		return textsplitter.NewMarkdownTextSplitter(size, overlap, textsplitter.WithHeadingHierarchy(true)), nil
	case StrategyToken:
		return textsplitter.NewTokenSplitter(size, overlap), nil
	default:
		return nil, fmt.Errorf("unknown strategy %q", strategy)
	}
}

// ValidStrategy reports whether name is a known splitting strategy.
func ValidStrategy(name string) bool {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", StrategyAuto, StrategyRecursive, StrategyMarkdown, StrategyToken:
		return true
	default:
		return false
	}
}
