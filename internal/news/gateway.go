// Package news provides a read-through proxy to a configured upstream
// headline feed, falling back to a fixed fixture set when the upstream is
// unset, unreachable, or returns a malformed body. The core treats this
// feed as entirely opaque.
package news

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// Article is one headline.
type Article struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Response is the /news payload shape.
type Response struct {
	Articles []Article `json:"articles"`
}

var fallback = Response{
	Articles: []Article{
		{Title: "Markets open steady amid tech rally", URL: "#"},
		{Title: "Energy stocks surge after oil price hike", URL: "#"},
	},
}

// Gateway fetches headlines from an optional upstream URL.
type Gateway struct {
	upstreamURL string
	client      *http.Client
}

// New constructs a Gateway. An empty upstreamURL always serves the fallback.
func New(upstreamURL string) *Gateway {
	return &Gateway{
		upstreamURL: upstreamURL,
		client:      &http.Client{Timeout: 5 * time.Second},
	}
}

// Fetch returns the upstream response, or the fallback fixture set if the
// upstream is unset, unreachable, or the body cannot be decoded. This
// endpoint always succeeds from the caller's point of view.
func (g *Gateway) Fetch(ctx context.Context) Response {
	if g.upstreamURL == "" {
		return fallback
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.upstreamURL, nil)
	if err != nil {
		return fallback
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return fallback
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fallback
	}

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fallback
	}
	return out
}
