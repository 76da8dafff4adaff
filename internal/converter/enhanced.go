package converter

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Generator produces enriched text from an extraction prompt. The
// production implementation is backed by a Genkit model (see
// NewGenkitGenerator); tests supply their own.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Enhanced delegates to a language model for richer extraction, e.g.
// descriptive text for tables and figures the structural pass flattens.
// It always runs the standard extraction first; the model receives that
// output and the filename as context.
type Enhanced struct {
	standard *Standard
	gen      Generator
	model    string
	logger   *slog.Logger
}

// NewEnhanced returns an enhanced converter when a credential is present.
// Without a credential (or without a generator) it falls back to the
// standard converter: degraded-mode operation is reported at warning
// level but is deliberately not an error.
func NewEnhanced(gen Generator, credential, model string, logger *slog.Logger) Converter {
	if logger == nil {
		logger = slog.Default()
	}
	if credential == "" || gen == nil {
		logger.Warn("enhanced conversion unavailable, falling back to standard conversion",
			"model", model,
			"reason", "credential missing")
		return NewStandard(logger)
	}
	return &Enhanced{
		standard: NewStandard(logger),
		gen:      gen,
		model:    model,
		logger:   logger,
	}
}

// Name identifies the enhanced variant.
func (*Enhanced) Name() string { return "enhanced" }

// Convert runs the standard extraction and asks the model to enrich it.
// If the model call fails the standard extraction is returned instead,
// so conversion quality degrades rather than the ingest aborting.
func (e *Enhanced) Convert(ctx context.Context, content []byte, filename string) (string, error) {
	text, err := e.standard.Convert(ctx, content, filename)
	if err != nil {
		return "", err
	}

	enriched, err := e.gen.Generate(ctx, enrichmentPrompt(filename, text))
	if err != nil {
		e.logger.Warn("enhanced conversion failed, using standard extraction",
			"filename", filename,
			"model", e.model,
			"error", err)
		return text, nil
	}
	if strings.TrimSpace(enriched) == "" {
		return text, nil
	}
	return enriched, nil
}

// enrichmentPrompt builds the model instruction for one document.
func enrichmentPrompt(filename, extracted string) string {
	return fmt.Sprintf(`You are a document extraction assistant. Below is the raw structural
extraction of the file %q. Rewrite it as clean plain text suitable for
semantic search indexing: fix broken line wrapping, describe any table
structure in prose, and preserve all factual content. Do not add
commentary or headers of your own.

%s`, filename, extracted)
}
