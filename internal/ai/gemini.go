package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/genai"
)

const (
	DefaultMaxAttempts = 4
	DefaultBaseDelay   = 5 * time.Second
)

// ContentGenerator is the part of the genai client the generator calls.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Connector opens a content generator for an API key.
type Connector func(ctx context.Context, apiKey string) (ContentGenerator, error)

func connectGemini(ctx context.Context, apiKey string) (ContentGenerator, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	return client.Models, nil
}

// GeminiGenerator calls Gemini with keys from a credential pool. A 429
// rotates to the next key right away, a 503 or 408 backs off exponentially.
type GeminiGenerator struct {
	pool        *CredentialPool
	connect     Connector
	maxAttempts int
	baseDelay   time.Duration

	mu      sync.Mutex
	clients map[string]ContentGenerator
}

func NewGeminiGenerator(pool *CredentialPool) *GeminiGenerator {
	return newGeminiGenerator(pool, connectGemini, DefaultBaseDelay)
}

func newGeminiGenerator(pool *CredentialPool, connect Connector, baseDelay time.Duration) *GeminiGenerator {
	return &GeminiGenerator{
		pool:        pool,
		connect:     connect,
		maxAttempts: DefaultMaxAttempts,
		baseDelay:   baseDelay,
		clients:     make(map[string]ContentGenerator),
	}
}

func (g *GeminiGenerator) Generate(ctx context.Context, model, prompt string) (string, error) {
	var lastStatus int
	var lastErr error
	rotations := 0

	for attempt := 1; attempt <= g.maxAttempts; {
		key, err := g.pool.Current()
		if err != nil {
			return "", err
		}

		client, err := g.client(ctx, key)
		if err != nil {
			return "", err
		}

		resp, err := client.GenerateContent(ctx, model, genai.Text(prompt), nil)
		if err == nil {
			return strings.TrimSpace(resp.Text()), nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		lastErr = err
		lastStatus = statusCode(err)
		switch lastStatus {
		case http.StatusTooManyRequests:
			g.pool.MarkFailed(key)
			if rotations < g.pool.Len()-1 {
				rotations++
				continue
			}
		case http.StatusServiceUnavailable, http.StatusRequestTimeout:
		default:
			return "", fmt.Errorf("gemini %s: %w", model, err)
		}

		if attempt == g.maxAttempts {
			break
		}

		delay := g.baseDelay << (attempt - 1)
		logrus.Infof("gemini %s returned %d, retrying in %s", model, lastStatus, delay)
		if err = sleep(ctx, delay); err != nil {
			return "", err
		}
		attempt++
	}

	return "", fmt.Errorf("%w: gemini %s returned %d: %v", ErrRateLimited, model, lastStatus, lastErr)
}

func (g *GeminiGenerator) client(ctx context.Context, key string) (ContentGenerator, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if c, ok := g.clients[key]; ok {
		return c, nil
	}

	c, err := g.connect(ctx, key)
	if err != nil {
		return nil, err
	}
	g.clients[key] = c

	return c, nil
}

func statusCode(err error) int {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return apiErrPtr.Code
	}
	return 0
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
