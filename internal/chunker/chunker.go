// Package chunker splits extracted document text into overlapping chunks
// suitable for embedding and retrieval.
//
// The splitter is greedy: it accumulates text up to a target size, then
// searches backward from the target boundary for the nearest paragraph
// break, newline, sentence end, or word boundary, in that priority order,
// and cuts there. Adjacent chunks share a configurable overlap so context
// spanning a boundary survives retrieval.
//
// Split is a pure function; it performs no I/O and holds no state.
package chunker

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// ErrInvalidConfig indicates the target size or overlap violates the
// splitter's preconditions. Checked with errors.Is.
var ErrInvalidConfig = errors.New("invalid chunking configuration")

// Default splitting parameters. Tuned for embedding models with a few
// thousand tokens of context; the parser uses these for every document.
const (
	DefaultTargetSize = 1000
	DefaultOverlap    = 200
)

// StrategyBoundaryAware names the splitting strategy implemented by this
// package. Recorded in chunk metadata so stored chunks are traceable to
// the algorithm that produced them.
const StrategyBoundaryAware = "boundary_aware"

// Split divides text into chunks of at most targetSize bytes, preferring
// to cut at paragraph, sentence, or word boundaries. Each chunk after the
// first begins overlap bytes before the end of the previous chunk.
//
// Preconditions: targetSize > 0 and 0 <= overlap < targetSize; violations
// return ErrInvalidConfig. Empty or all-whitespace text returns an empty
// result, not an error. Text that fits within targetSize is returned as a
// single chunk.
//
// The start position always advances by at least one rune per iteration,
// so Split terminates for every input regardless of the overlap value.
func Split(text string, targetSize, overlap int) ([]string, error) {
	if targetSize <= 0 {
		return nil, fmt.Errorf("%w: target size must be positive, got %d", ErrInvalidConfig, targetSize)
	}
	if overlap < 0 || overlap >= targetSize {
		return nil, fmt.Errorf("%w: overlap must be in [0, %d), got %d", ErrInvalidConfig, targetSize, overlap)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	if len(text) <= targetSize {
		return []string{text}, nil
	}

	var chunks []string
	start := 0
	for start < len(text) {
		end := start + targetSize
		if end < len(text) {
			end = cutPoint(text, start, end)
		} else {
			end = len(text)
		}

		if chunk := strings.TrimSpace(text[start:end]); chunk != "" {
			chunks = append(chunks, chunk)
		}

		if end >= len(text) {
			break
		}

		// Overlap is clamped so the window always moves forward. The
		// rewind backs up to a rune start so no chunk begins inside a
		// multi-byte rune.
		next := end - overlap
		for next > start && !utf8.RuneStart(text[next]) {
			next--
		}
		if next <= start {
			_, size := utf8.DecodeRuneInString(text[start:])
			next = start + size
		}
		start = next
	}

	return chunks, nil
}

// cutPoint finds the best boundary in text[start:end] to cut at, searching
// backward from end. Boundary priority: paragraph break, newline, sentence
// end, word boundary. Falls back to a hard cut at end, backed up so a
// multi-byte rune is never split.
func cutPoint(text string, start, end int) int {
	window := text[start:end]

	if i := strings.LastIndex(window, "\n\n"); i > 0 {
		return start + i + 2
	}
	if i := strings.LastIndex(window, "\n"); i > 0 {
		return start + i + 1
	}
	if i := strings.LastIndex(window, ". "); i > 0 {
		return start + i + 2
	}
	if i := strings.LastIndex(window, " "); i > 0 {
		return start + i + 1
	}

	// Hard cut: a single unbroken run longer than the window. Back up to
	// the nearest rune start so the cut stays valid UTF-8.
	for end > start && !utf8.RuneStart(text[end]) {
		end--
	}
	return end
}
