package ai

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/evolearn/studyhub/internal/clock"
	"github.com/evolearn/studyhub/internal/model"
	"github.com/sirupsen/logrus"
)

const budgetNote = "\n\n[Note: partial summary, the time budget ran out.]"

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, model, prompt string) (string, error)
}

// Summarizer summarizes long texts chunk by chunk and merges the partial
// summaries with a final call.
type Summarizer struct {
	gemini    Generator
	anthropic Generator
	clock     clock.Clock

	ChunkSize      int
	MaxChunks      int
	FastBudget     time.Duration
	DetailedBudget time.Duration
}

// NewSummarizer routes claude-* models to anthropic, which may be nil, and
// everything else to gemini.
func NewSummarizer(gemini, anthropic Generator, clk clock.Clock) *Summarizer {
	return &Summarizer{
		gemini:         gemini,
		anthropic:      anthropic,
		clock:          clk,
		ChunkSize:      DefaultChunkSize,
		MaxChunks:      DefaultMaxChunks,
		FastBudget:     90 * time.Second,
		DetailedBudget: 250 * time.Second,
	}
}

func (s *Summarizer) generator(modelName string) (Generator, error) {
	if strings.HasPrefix(modelName, "claude") {
		if s.anthropic == nil {
			return nil, ErrProviderUnavailable
		}
		return s.anthropic, nil
	}
	if s.gemini == nil {
		return nil, ErrProviderUnavailable
	}
	return s.gemini, nil
}

// Summarize returns ErrRateLimited, possibly wrapped, when the provider is out
// of quota so the caller can retry later.
func (s *Summarizer) Summarize(ctx context.Context, text string, analysis model.AnalysisType, modelName string) (string, error) {
	gen, err := s.generator(modelName)
	if err != nil {
		return "", err
	}

	budget := s.FastBudget
	if analysis == model.AnalysisDetailed {
		budget = s.DetailedBudget
	}
	deadline := s.clock.Now().Add(budget)

	chunks := splitChunks(text, s.ChunkSize, s.MaxChunks)
	logrus.Infof("summarizing %d chars in %d chunks with %s", len(text), len(chunks), modelName)

	var partials []string
	var lastErr error
	budgetHit := false
	for i, chunk := range chunks {
		if s.clock.Now().After(deadline) {
			budgetHit = true
			logrus.Infof("time budget reached after %d chunks", len(partials))
			break
		}

		out, err := gen.Generate(ctx, modelName, chunkPrompt(chunk, analysis, i+1, len(chunks)))
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if errors.Is(err, ErrRateLimited) {
			return "", err
		}
		if err != nil {
			logrus.Errorf("chunk %d of %d failed: %v", i+1, len(chunks), err)
			lastErr = err
			continue
		}
		if out == "" {
			logrus.Warnf("chunk %d of %d produced no text", i+1, len(chunks))
			continue
		}
		partials = append(partials, out)
	}

	switch {
	case len(partials) == 0 && lastErr != nil:
		return "", lastErr
	case len(partials) == 0:
		return "", ErrEmptySummary
	case len(partials) == 1:
		return partials[0], nil
	case budgetHit:
		return strings.Join(partials, "\n\n") + budgetNote, nil
	}

	final, err := gen.Generate(ctx, modelName, combinePrompt(partials, analysis))
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	if errors.Is(err, ErrRateLimited) {
		return "", err
	}
	if err != nil || final == "" {
		logrus.Warnf("combining %d partial summaries failed, joining them: %v", len(partials), err)
		return strings.Join(partials, "\n\n"), nil
	}

	return final, nil
}
