// Discoveryd - Art Discovery Feed and Preference Engine
// Copyright 2026 Kaleidorium
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kaleidorium/discoveryd

// Package search implements the external text-search collaborator used by
// the filter engine. The collaborator is best-effort: any failure makes the
// filter engine fall back to local substring matching.
package search

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/kaleidorium/discoveryd/internal/config"
	"github.com/kaleidorium/discoveryd/internal/discovery"
	"github.com/kaleidorium/discoveryd/internal/logging"
	"github.com/kaleidorium/discoveryd/internal/metrics"
)

// breakerName labels the search circuit breaker in logs and metrics.
const breakerName = "search"

// maxResponseBytes caps a search response body.
const maxResponseBytes = 4 << 20

// Client queries the search endpoint over HTTP, guarded by a circuit
// breaker.
type Client struct {
	baseURL string
	http    *http.Client
	cb      *gobreaker.CircuitBreaker[[]discovery.Candidate]
}

// New creates a search client from configuration. A nil client is returned
// when search is disabled; the filter engine treats a nil Searcher as
// local-only.
func New(cfg config.SearchConfig) *Client {
	if !cfg.Enabled || cfg.URL == "" {
		return nil
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)

	cb := gobreaker.NewCircuitBreaker[[]discovery.Candidate](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 5 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().
				Str("breaker", name).
				Str("from", stateToString(from)).
				Str("to", stateToString(to)).
				Msg("Circuit breaker state transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, stateToString(from), stateToString(to)).Inc()
		},
	})

	return &Client{
		baseURL: cfg.URL,
		http:    &http.Client{Timeout: timeout},
		cb:      cb,
	}
}

// Search queries the endpoint for candidates matching the term. The term is
// passed as the q query parameter; the endpoint returns a JSON candidate
// array.
func (c *Client) Search(ctx context.Context, term string) ([]discovery.Candidate, error) {
	results, err := c.cb.Execute(func() ([]discovery.Candidate, error) {
		return c.search(ctx, term)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.SearchRequestsTotal.WithLabelValues("rejected").Inc()
		} else {
			metrics.SearchRequestsTotal.WithLabelValues("error").Inc()
		}
		return nil, err
	}
	metrics.SearchRequestsTotal.WithLabelValues("success").Inc()
	return results, nil
}

func (c *Client) search(ctx context.Context, term string) ([]discovery.Candidate, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse search url: %w", err)
	}
	q := u.Query()
	q.Set("q", term)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			logging.Debug().Err(cerr).Msg("close search response body")
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read search response: %w", err)
	}

	var results []discovery.Candidate
	if err := json.Unmarshal(body, &results); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	return results, nil
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
