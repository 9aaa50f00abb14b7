// Package resolver is the HTTP client for the optional external entity
// resolution service. Every call is best-effort: the cascade treats any
// failure here as "no assistance available" and moves on, so nothing in this
// package is fatal to a resolution.
package resolver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ohana-garden/almoner/internal/models"
)

// ErrUnknownEntity is returned when the service reports no match for the
// candidate. It is a negative signal, not a failure.
var ErrUnknownEntity = errors.New("resolver: unknown entity")

// unknownID is the sentinel id the service uses for "no match".
const unknownID = "unknown"

// Result is the service's answer for one candidate.
type Result struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	EntityType string         `json:"entity_type"`
	IsNew      bool           `json:"is_new"`
	Confidence float64        `json:"confidence"`
	Properties map[string]any `json:"properties"`
}

// Mention is one entity occurrence extracted from free text.
type Mention struct {
	Name       string         `json:"name"`
	EntityType string         `json:"entity_type"`
	Properties map[string]any `json:"properties"`
}

type healthResponse struct {
	Connected bool `json:"connected"`
}

// resolvePaths maps node labels onto the service's resolve endpoints. Labels
// outside this map get no external assistance.
var resolvePaths = map[models.Label]string{
	models.LabelFunder: "funder",
	models.LabelOrg:    "org",
	models.LabelPerson: "person",
}

// Client talks to the resolver service. Availability is cached behind a
// time-boxed breaker: a probe result (positive or negative) holds for
// probeInterval, then the next Available call re-probes. A down dependency is
// not hammered, a recovered one is picked up again.
type Client struct {
	baseURL       string
	http          *http.Client
	probeInterval time.Duration
	logger        *slog.Logger

	mu        sync.Mutex
	available bool
	checkedAt time.Time
}

// NewClient creates a resolver client. baseURL may be empty, in which case
// the client reports unavailable and every call fails fast.
func NewClient(baseURL string, timeout, probeInterval time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		http:          &http.Client{Timeout: timeout},
		probeInterval: probeInterval,
		logger:        logger,
	}
}

// Supports reports whether the service has a resolve endpoint for the label.
func (c *Client) Supports(label models.Label) bool {
	_, ok := resolvePaths[label]
	return ok
}

// mentionLabels maps the service's entity_type vocabulary onto node labels.
var mentionLabels = map[string]models.Label{
	"funder":       models.LabelFunder,
	"org":          models.LabelOrg,
	"organization": models.LabelOrg,
	"person":       models.LabelPerson,
	"opportunity":  models.LabelOpportunity,
}

// LabelFor maps an extracted mention's entity_type onto a node label.
func LabelFor(entityType string) (models.Label, bool) {
	label, ok := mentionLabels[strings.ToLower(entityType)]
	return label, ok
}

// Health probes GET /health once, bypassing the availability cache.
func (c *Client) Health(ctx context.Context) (bool, error) {
	if c.baseURL == "" {
		return false, fmt.Errorf("resolver: no base URL configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false, fmt.Errorf("resolver health: creating request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("resolver health: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("resolver health: status %d", resp.StatusCode)
	}

	var hr healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&hr); err != nil {
		return false, fmt.Errorf("resolver health: decoding response: %w", err)
	}
	return hr.Connected, nil
}

// Available reports whether the service is reachable, re-probing at most once
// per probe interval.
func (c *Client) Available(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if time.Since(c.checkedAt) < c.probeInterval {
		return c.available
	}

	ok, err := c.Health(ctx)
	if err != nil {
		c.logger.Debug("resolver probe failed", "error", err)
		ok = false
	}
	c.available = ok
	c.checkedAt = time.Now()
	return ok
}

// Resolve submits normalized candidate fields to POST /resolve/{kind}. A
// sentinel "unknown" answer comes back as ErrUnknownEntity.
func (c *Client) Resolve(ctx context.Context, label models.Label, fields map[string]any) (*Result, error) {
	path, ok := resolvePaths[label]
	if !ok {
		return nil, fmt.Errorf("%w: label %s has no resolve endpoint", ErrUnknownEntity, label)
	}

	var result Result
	if err := c.post(ctx, "/resolve/"+path, fields, &result); err != nil {
		return nil, err
	}
	if result.ID == "" || result.ID == unknownID {
		return nil, fmt.Errorf("%w: %v", ErrUnknownEntity, fields["name"])
	}
	return &result, nil
}

// Extract submits free text to POST /extract and returns the entity mentions
// the service identified.
func (c *Client) Extract(ctx context.Context, text, source string) ([]Mention, error) {
	body := map[string]any{"text": text, "source": source}
	var mentions []Mention
	if err := c.post(ctx, "/extract", body, &mentions); err != nil {
		return nil, err
	}
	return mentions, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	if c.baseURL == "" {
		return fmt.Errorf("resolver: no base URL configured")
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("resolver: marshalling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("resolver: creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("resolver: calling %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrUnknownEntity, path)
	}
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("resolver: %s returned %d: %s", path, resp.StatusCode, string(msg))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("resolver: decoding %s response: %w", path, err)
	}
	return nil
}
