package gateway

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/sashabaranov/go-openai/jsonschema"
	"lesson-arcade-service/internal/domain"
)

// Request is one "generate content" call.
type Request struct {
	Prompt            string
	SystemInstruction string
	// Schema, when set, asks the model for JSON conforming to it.
	Schema     *jsonschema.Definition
	SchemaName string
}

// Generator performs a single remote generation attempt against a model.
type Generator interface {
	Generate(ctx context.Context, model string, req Request) (string, error)
}

// Policy bounds the retry loop of one model tier.
type Policy struct {
	MaxRetries int
	BaseDelay  time.Duration
}

// DefaultPolicy is three retries starting at one second.
var DefaultPolicy = Policy{MaxRetries: 3, BaseDelay: time.Second}

// Delay returns the wait before retry number attempt (1-based).
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		return 0
	}
	return p.BaseDelay << (attempt - 1)
}

// Gateway layers retry and tier fallback over a Generator. It keeps no state
// between calls.
type Gateway struct {
	gen   Generator
	sleep func(ctx context.Context, d time.Duration) error
}

func New(gen Generator) *Gateway {
	return NewWithSleeper(gen, sleepContext)
}

// NewWithSleeper lets tests replace the backoff wait.
func NewWithSleeper(gen Generator, sleep func(ctx context.Context, d time.Duration) error) *Gateway {
	return &Gateway{gen: gen, sleep: sleep}
}

// Invoke issues exactly one attempt and classifies its failure.
func (g *Gateway) Invoke(ctx context.Context, model string, req Request) (string, error) {
	text, err := g.gen.Generate(ctx, model, req)
	if err != nil {
		return "", Classify(model, err)
	}
	return text, nil
}

// InvokeWithRetry retries rate-limited or overloaded attempts with
// exponential backoff. Any other failure is returned at once.
func (g *Gateway) InvokeWithRetry(ctx context.Context, model string, req Request, policy Policy) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := policy.Delay(attempt)
			log.Printf("model %s: %v, retrying in %s (%d/%d)", model, lastErr, delay, attempt, policy.MaxRetries)
			if err := g.sleep(ctx, delay); err != nil {
				return "", fmt.Errorf("%w: %w", lastErr, err)
			}
		}

		text, err := g.Invoke(ctx, model, req)
		if err == nil {
			return text, nil
		}
		if !domain.Retryable(err) {
			return "", err
		}
		lastErr = err
	}
	return "", lastErr
}

// InvokeWithFallback runs the primary tier and, only when it gave up on
// rate-limit or overload grounds, the fallback tier. When both tiers give up
// that way the error is domain.ErrQuotaExhausted.
func (g *Gateway) InvokeWithFallback(ctx context.Context, primary, fallback string, req Request, policy Policy) (string, error) {
	text, err := g.InvokeWithRetry(ctx, primary, req, policy)
	if err == nil {
		return text, nil
	}
	if !domain.Retryable(err) || ctx.Err() != nil {
		return "", err
	}
	if fallback == "" || fallback == primary {
		return "", fmt.Errorf("%w: %w", domain.ErrQuotaExhausted, err)
	}

	log.Printf("model %s exhausted retries, falling back to %s", primary, fallback)
	text, fbErr := g.InvokeWithRetry(ctx, fallback, req, policy)
	if fbErr == nil {
		return text, nil
	}
	if domain.Retryable(fbErr) && ctx.Err() == nil {
		return "", fmt.Errorf("%w: %w", domain.ErrQuotaExhausted, fbErr)
	}
	return "", fbErr
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
