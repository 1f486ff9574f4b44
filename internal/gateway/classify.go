package gateway

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"lesson-arcade-service/internal/domain"
)

var (
	rateLimitMarkers = []string{"429", "quota", "resource_exhausted", "resource exhausted"}
	overloadMarkers  = []string{"503", "unavailable", "overloaded"}
)

// Classify wraps a raw generation error in domain.ErrRateLimited,
// domain.ErrOverloaded or domain.ErrRemote. Errors already classified are
// returned unchanged.
func Classify(model string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrRateLimited) || errors.Is(err, domain.ErrOverloaded) || errors.Is(err, domain.ErrRemote) {
		return err
	}

	switch kind(err) {
	case domain.ErrRateLimited:
		return fmt.Errorf("%w: %s: %w", domain.ErrRateLimited, model, err)
	case domain.ErrOverloaded:
		return fmt.Errorf("%w: %s: %w", domain.ErrOverloaded, model, err)
	default:
		return fmt.Errorf("%w: %s: %w", domain.ErrRemote, model, err)
	}
}

func kind(err error) error {
	status, code := statusOf(err)
	switch {
	case status == http.StatusTooManyRequests || code == http.StatusTooManyRequests:
		return domain.ErrRateLimited
	case status == http.StatusServiceUnavailable || code == http.StatusServiceUnavailable:
		return domain.ErrOverloaded
	}

	msg := strings.ToLower(err.Error())
	for _, m := range rateLimitMarkers {
		if strings.Contains(msg, m) {
			return domain.ErrRateLimited
		}
	}
	for _, m := range overloadMarkers {
		if strings.Contains(msg, m) {
			return domain.ErrOverloaded
		}
	}
	return domain.ErrRemote
}

// statusOf extracts the HTTP status and numeric API code carried by err.
func statusOf(err error) (status, code int) {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode, numericCode(apiErr.Code)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode, 0
	}
	var sc interface{ StatusCode() int }
	if errors.As(err, &sc) {
		return sc.StatusCode(), 0
	}
	return 0, 0
}

func numericCode(code any) int {
	switch c := code.(type) {
	case int:
		return c
	case float64:
		return int(c)
	case string:
		if n, err := strconv.Atoi(c); err == nil {
			return n
		}
	}
	return 0
}
