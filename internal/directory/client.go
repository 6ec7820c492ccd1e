// Package directory implements C3, resolution of unknown player names (and
// NPC/item catalog entries) to canonical external ids via a WiseOldMan-shaped
// HTTP API. Network shape follows the teacher's plain net/http.Client usage
// (no generated SDK in the corpus for this kind of lookup service).
package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrNotFound is returned when the directory has no record for the name.
	ErrNotFound = errors.New("directory: player not found")
	// ErrTransient wraps 5xx/timeout responses (§7 TransientBackend); no
	// caller retries it.
	ErrTransient = errors.New("directory: transient backend error")
)

// PlayerSnapshot is the canonical record returned for a resolved player.
type PlayerSnapshot struct {
	DirectoryID int64  `json:"id"`
	DisplayName string `json:"displayName"`
}

// Client resolves players against the configured directory service.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.SugaredLogger
}

func New(baseURL string, timeout time.Duration, logger *zap.SugaredLogger) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// Resolve fetches (or, on the directory's side, creates) a player by display
// name, returning the canonical id and latest display name (§3 "missing or
// account-hash mismatched ... invoke the Directory Client to fetch/create").
func (c *Client) Resolve(ctx context.Context, playerName string) (*PlayerSnapshot, error) {
	u := fmt.Sprintf("%s/players/%s", c.baseURL, url.PathEscape(playerName))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("directory: build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warnw("directory resolve failed", "player", playerName, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: status %d", ErrTransient, resp.StatusCode)
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("directory: unexpected status %d for %q", resp.StatusCode, playerName)
	}

	var snap PlayerSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return nil, fmt.Errorf("directory: decode response: %w", err)
	}
	return &snap, nil
}

// Price resolves an item's current market price by exact name, used by the
// submission pipeline's true-value overrides (§9).
func (c *Client) Price(ctx context.Context, itemName string) (int64, error) {
	u := fmt.Sprintf("%s/prices/%s", c.baseURL, url.PathEscape(itemName))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, fmt.Errorf("directory: build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return 0, ErrNotFound
	case resp.StatusCode >= 500:
		return 0, fmt.Errorf("%w: status %d", ErrTransient, resp.StatusCode)
	}

	var out struct {
		Price int64 `json:"price"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("directory: decode price response: %w", err)
	}
	return out.Price, nil
}

// VerifyDrop confirms an item is a valid drop from npcName, the high-value
// cross-check in §4.2 step 5 ("If total > 1 000 000, verify item is a valid
// drop from NPC via the Directory Client; reject if not.").
func (c *Client) VerifyDrop(ctx context.Context, npcName, itemName string) (bool, error) {
	u := fmt.Sprintf("%s/drops/verify?npc=%s&item=%s", c.baseURL, url.QueryEscape(npcName), url.QueryEscape(itemName))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return false, fmt.Errorf("directory: build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return false, fmt.Errorf("%w: status %d", ErrTransient, resp.StatusCode)
	}

	var out struct {
		Valid bool `json:"valid"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, fmt.Errorf("directory: decode verify response: %w", err)
	}
	return out.Valid, nil
}
