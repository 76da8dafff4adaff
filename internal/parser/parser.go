// Package parser is the public entry point of the document processing
// pipeline. It composes a converter and the chunker: raw file bytes go
// in, ordered chunks with consistent metadata come out.
//
// The parser is stateless per call beyond its immutable configuration
// and performs no storage I/O.
package parser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/kura-kb/kura/internal/chunker"
	"github.com/kura-kb/kura/internal/converter"
)

// ErrEmptyContent indicates conversion succeeded but produced no usable
// text. Distinct from converter.ErrConversionFailed: the input was
// well-formed but vacuous.
var ErrEmptyContent = errors.New("no usable text content")

// Reserved metadata keys populated on every chunk. Caller-supplied
// metadata never overrides these; they are recomputed on each parse so
// the group invariants always hold.
const (
	MetaSourceFilename   = "source_filename"
	MetaChunkIndex       = "chunk_index"
	MetaChunkCount       = "chunk_count"
	MetaContentSize      = "content_size"
	MetaProcessedAt      = "processed_at"
	MetaChunkingStrategy = "chunking_strategy"
)

// Chunk is one span of document text plus its metadata, ready for
// insertion into the knowledge store.
type Chunk struct {
	Text     string
	Metadata map[string]string
}

// Config is the immutable parser configuration, resolved once per
// instance from the application configuration.
type Config struct {
	// UseEnhanced enables the language-model conversion path.
	UseEnhanced bool

	// Model is the generation model identifier; only meaningful when
	// UseEnhanced is set.
	Model string

	// Credential authorizes the enhanced conversion backend. When blank
	// the enhanced path silently degrades to standard conversion.
	Credential string
}

// Parser converts file content to text and splits it into chunks with
// per-chunk metadata.
type Parser struct {
	conv       converter.Converter
	targetSize int
	overlap    int
	extensions map[string]bool
	logger     *slog.Logger
}

// New creates a parser around the given converter. The supported
// extension allow-list is fixed at construction. A nil logger falls
// back to slog.Default.
func New(conv converter.Converter, logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}

	exts := make(map[string]bool)
	for _, ext := range converter.SupportedExtensions() {
		exts[ext] = true
	}

	return &Parser{
		conv:       conv,
		targetSize: chunker.DefaultTargetSize,
		overlap:    chunker.DefaultOverlap,
		extensions: exts,
		logger:     logger,
	}
}

// NewFromConfig builds a parser with the converter variant selected by
// cfg: enhanced when enabled and a credential is present, standard
// otherwise. gen may be nil when enhanced mode is off.
func NewFromConfig(cfg Config, gen converter.Generator, logger *slog.Logger) *Parser {
	var conv converter.Converter
	if cfg.UseEnhanced {
		conv = converter.NewEnhanced(gen, cfg.Credential, cfg.Model, logger)
	} else {
		conv = converter.NewStandard(logger)
	}
	return New(conv, logger)
}

// Parse converts content to text and splits it into chunks. Each chunk's
// metadata is base merged with the reserved keys; reserved keys win.
//
// Within one call chunk_index runs contiguously from 0 and chunk_count
// equals the total on every chunk. Returns ErrEmptyContent when the
// extracted text is blank after trimming.
func (p *Parser) Parse(ctx context.Context, content []byte, filename string, base map[string]string) ([]Chunk, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !p.extensions[ext] {
		return nil, fmt.Errorf("%w: %q", converter.ErrUnsupportedFormat, ext)
	}

	text, err := p.conv.Convert(ctx, content, filename)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: %s", ErrEmptyContent, filename)
	}

	pieces, err := chunker.Split(text, p.targetSize, p.overlap)
	if err != nil {
		return nil, err
	}

	processedAt := time.Now().UTC().Format(time.RFC3339)
	chunks := make([]Chunk, len(pieces))
	for i, piece := range pieces {
		chunks[i] = Chunk{
			Text:     piece,
			Metadata: p.buildMetadata(base, filename, i, len(pieces), len(content), processedAt),
		}
	}

	p.logger.Debug("parsed document",
		"filename", filename,
		"chunks", len(chunks),
		"converter", p.conv.Name())

	return chunks, nil
}

// buildMetadata merges caller metadata with the reserved keys. The merge
// is an explicit two-step: caller keys first, reserved keys overwrite.
// This keeps the precedence rule auditable instead of depending on map
// insertion order.
func (p *Parser) buildMetadata(base map[string]string, filename string, index, count, size int, processedAt string) map[string]string {
	meta := make(map[string]string, len(base)+6)
	for k, v := range base {
		meta[k] = v
	}

	meta[MetaSourceFilename] = filename
	meta[MetaChunkIndex] = strconv.Itoa(index)
	meta[MetaChunkCount] = strconv.Itoa(count)
	meta[MetaContentSize] = strconv.Itoa(size)
	meta[MetaProcessedAt] = processedAt
	meta[MetaChunkingStrategy] = chunker.StrategyBoundaryAware

	return meta
}

// SupportedExtensions returns the allow-list consulted by Parse, sorted.
// Callers can use it to validate files before upload.
func (p *Parser) SupportedExtensions() []string {
	return converter.SupportedExtensions()
}

// IsSupported reports whether filename has a supported extension.
func (p *Parser) IsSupported(filename string) bool {
	return p.extensions[strings.ToLower(filepath.Ext(filename))]
}
