// Discoveryd - Art Discovery Feed and Preference Engine
// Copyright 2026 Kaleidorium
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kaleidorium/discoveryd

// Package delegate implements the external ranking collaborator. Identified
// viewers' refreshes are delegated to an OpenAI-compatible model; the model
// receives the viewer's accumulated preferences plus the unseen candidates
// and returns candidate ids in recommendation order.
//
// Delegation is strictly best-effort. Every failure mode (timeout, open
// circuit, malformed response) surfaces as an error to the orchestrator,
// which falls back to local scoring without interrupting the feed.
package delegate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/kaleidorium/discoveryd/internal/config"
	"github.com/kaleidorium/discoveryd/internal/discovery"
	"github.com/kaleidorium/discoveryd/internal/logging"
	"github.com/kaleidorium/discoveryd/internal/metrics"
)

// breakerName labels the delegate circuit breaker in logs and metrics.
const breakerName = "delegate-ranker"

// maxPromptCandidates caps how many candidates are described to the model.
// Pools larger than this are truncated; the orchestrator appends unmentioned
// candidates in original order anyway.
const maxPromptCandidates = 100

// ErrDisabled indicates delegation is turned off in configuration.
var ErrDisabled = errors.New("delegated ranking disabled")

// rankResponse is the wire shape the model is instructed to return.
type rankResponse struct {
	Recommendations []string `json:"recommendations"`
}

// LLMRanker ranks candidates through an OpenAI-compatible chat model,
// guarded by a circuit breaker.
type LLMRanker struct {
	llm     llms.Model
	cb      *gobreaker.CircuitBreaker[[]string]
	model   string
	timeout time.Duration
}

// New creates a ranker from configuration. It returns ErrDisabled when
// delegation is off, letting the caller wire a nil ranker explicitly.
func New(cfg config.DelegateConfig) (*LLMRanker, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	opts := []openai.Option{
		openai.WithModel(cfg.Model),
		openai.WithToken(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create ranking client: %w", err)
	}

	return newWithModel(llm, cfg), nil
}

// newWithModel wires the breaker around any llms.Model. Split out so tests
// can inject a fake model.
func newWithModel(llm llms.Model, cfg config.DelegateConfig) *LLMRanker {
	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)

	cb := gobreaker.NewCircuitBreaker[[]string](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
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

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 8 * time.Second
	}

	return &LLMRanker{
		llm:     llm,
		cb:      cb,
		model:   cfg.Model,
		timeout: timeout,
	}
}

// Rank asks the model to order the candidates for the profile. The returned
// ids preserve the model's order; ids the model invents or repeats are
// filtered by the orchestrator during the merge.
func (r *LLMRanker) Rank(ctx context.Context, profile *discovery.Profile, candidates []discovery.Candidate) ([]string, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	ids, err := r.cb.Execute(func() ([]string, error) {
		callCtx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()
		return r.rank(callCtx, profile, candidates)
	})
	if err != nil {
		metrics.DelegateFailuresTotal.WithLabelValues(failureCause(err)).Inc()
		return nil, err
	}
	return ids, nil
}

func (r *LLMRanker) rank(ctx context.Context, profile *discovery.Profile, candidates []discovery.Candidate) ([]string, error) {
	prompt := buildPrompt(profile, candidates)

	reply, err := llms.GenerateFromSinglePrompt(ctx, r.llm, prompt,
		llms.WithJSONMode(),
		llms.WithTemperature(0.2),
	)
	if err != nil {
		return nil, fmt.Errorf("ranking model call: %w", err)
	}

	ids, err := parseReply(reply)
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// buildPrompt serializes the profile and the candidate digest for the model.
func buildPrompt(profile *discovery.Profile, candidates []discovery.Candidate) string {
	var b strings.Builder

	b.WriteString("You are an art recommendation engine. Rank the candidate artworks ")
	b.WriteString("for this viewer, best match first, using their preference weights. ")
	b.WriteString("Higher weight means stronger affinity; negative weight means aversion.\n\n")

	b.WriteString("Viewer preferences:\n")
	writeWeights(&b, "artists", profile.Artists)
	writeWeights(&b, "genres", profile.Genres)
	writeWeights(&b, "styles", profile.Styles)
	writeWeights(&b, "subjects", profile.Subjects)
	writeWeights(&b, "colors", profile.Colors)
	writeWeights(&b, "price ranges", profile.PriceRanges)

	b.WriteString("\nCandidates:\n")
	limit := len(candidates)
	if limit > maxPromptCandidates {
		limit = maxPromptCandidates
	}
	for _, c := range candidates[:limit] {
		fmt.Fprintf(&b, "- id=%s title=%q artist=%q style=%q genre=%q subject=%q colour=%q\n",
			c.ID, c.Title, c.Artist, c.Style, c.Genre, c.Subject, c.Colour)
	}

	b.WriteString("\nRespond with JSON only, in the form ")
	b.WriteString(`{"recommendations": ["id1", "id2", ...]} `)
	b.WriteString("listing every candidate id exactly once in ranked order.")

	return b.String()
}

func writeWeights(b *strings.Builder, label string, weights map[string]float64) {
	if len(weights) == 0 {
		return
	}
	fmt.Fprintf(b, "  %s: ", label)
	first := true
	for k, v := range weights {
		if !first {
			b.WriteString(", ")
		}
		fmt.Fprintf(b, "%s=%.2f", k, v)
		first = false
	}
	b.WriteString("\n")
}

// parseReply extracts the ranked id list from the model reply. Models
// occasionally wrap JSON in markdown fences; strip them before decoding.
func parseReply(reply string) ([]string, error) {
	cleaned := strings.TrimSpace(reply)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var resp rankResponse
	if err := json.Unmarshal([]byte(cleaned), &resp); err != nil {
		return nil, fmt.Errorf("parse ranking response: %w", err)
	}
	if len(resp.Recommendations) == 0 {
		return nil, errors.New("ranking response contained no recommendations")
	}
	return resp.Recommendations, nil
}

// failureCause classifies a delegate error for metrics.
func failureCause(err error) string {
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "circuit_open"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "error"
	}
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
