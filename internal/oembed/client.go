package oembed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"lesson-arcade-service/internal/domain"
)

// DefaultEndpoint is YouTube's public oEmbed endpoint.
const DefaultEndpoint = "https://www.youtube.com/oembed"

// Client looks up video titles and authors through an oEmbed endpoint.
type Client struct {
	endpoint string
	http     *http.Client
}

func NewClient(endpoint string, timeout time.Duration) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		endpoint: endpoint,
		http:     &http.Client{Timeout: timeout},
	}
}

// Lookup fetches metadata for videoURL. Every failure wraps
// domain.ErrMetadataUnavailable.
func (c *Client) Lookup(ctx context.Context, videoURL string) (domain.VideoMetadata, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return domain.VideoMetadata{}, fmt.Errorf("%w: bad endpoint: %w", domain.ErrMetadataUnavailable, err)
	}
	q := u.Query()
	q.Set("url", videoURL)
	q.Set("format", "json")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return domain.VideoMetadata{}, fmt.Errorf("%w: %w", domain.ErrMetadataUnavailable, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return domain.VideoMetadata{}, fmt.Errorf("%w: %w", domain.ErrMetadataUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return domain.VideoMetadata{}, fmt.Errorf("%w: status %d", domain.ErrMetadataUnavailable, resp.StatusCode)
	}

	var meta domain.VideoMetadata
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&meta); err != nil {
		return domain.VideoMetadata{}, fmt.Errorf("%w: decode: %w", domain.ErrMetadataUnavailable, err)
	}
	return meta, nil
}
