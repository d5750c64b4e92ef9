// Discoveryd - Art Discovery Feed and Preference Engine
// Copyright 2026 Kaleidorium
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kaleidorium/discoveryd

package discovery

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/kaleidorium/discoveryd/internal/logging"
	"github.com/kaleidorium/discoveryd/internal/metrics"
)

// FilterEngine narrows a candidate pool by user-specified criteria with a
// three-tier fallback cascade: exact-AND, relaxed-OR, and finally a typed
// "no matches" state. A non-empty search term is first offered to the
// external text-search collaborator; its results become the search-matched
// base set and the remaining criteria run against that reduced set.
type FilterEngine struct {
	searcher Searcher
	logger   zerolog.Logger
}

// NewFilterEngine creates a filter engine. searcher may be nil; search
// terms are then matched by local substring only.
func NewFilterEngine(searcher Searcher) *FilterEngine {
	return &FilterEngine{
		searcher: searcher,
		logger:   logging.With().Str("component", "filter").Logger(),
	}
}

// Apply filters the pool by the criteria. It never returns an error: a
// final empty set yields Matched=false with the full pool as the fallback
// display set. The result pool contains no duplicate candidate ids.
func (e *FilterEngine) Apply(ctx context.Context, pool []Candidate, criteria Criteria) FilterResult {
	if criteria.Empty() {
		return FilterResult{Pool: dedupeByID(pool), Matched: true, Tier: TierExact}
	}

	base := pool
	searchApplied := false

	if criteria.Search != "" && e.searcher != nil {
		if results, ok := e.searchBase(ctx, pool, criteria.Search); ok {
			base = results
			searchApplied = true
		}
	}

	// The collaborator already applied search semantics to the base set;
	// only the structured criteria remain in that case.
	local := criteria
	if searchApplied {
		local.Search = ""
	}

	if filtered := filterTier(base, local, true); len(filtered) > 0 {
		metrics.FilterTierResultsTotal.WithLabelValues(TierExact.String()).Inc()
		return FilterResult{
			Pool:            dedupeByID(filtered),
			Matched:         true,
			Tier:            TierExact,
			SearchAugmented: searchApplied,
		}
	}

	if filtered := filterTier(base, local, false); len(filtered) > 0 {
		metrics.FilterTierResultsTotal.WithLabelValues(TierRelaxed.String()).Inc()
		return FilterResult{
			Pool:            dedupeByID(filtered),
			Matched:         true,
			Tier:            TierRelaxed,
			SearchAugmented: searchApplied,
		}
	}

	// A normal, user-correctable outcome: show everything with a
	// "no matches" signal rather than an error.
	metrics.FilterTierResultsTotal.WithLabelValues(TierNone.String()).Inc()
	e.logger.Debug().
		Str("style", criteria.Style).
		Str("subject", criteria.Subject).
		Str("colors", criteria.Colors).
		Str("search", criteria.Search).
		Msg("no candidates matched filter criteria")
	return FilterResult{
		Pool:            dedupeByID(pool),
		Matched:         false,
		Tier:            TierNone,
		SearchAugmented: searchApplied,
	}
}

// searchBase queries the external text-search collaborator and restricts
// its response to candidates present in the pool (collaborator responses
// may overlap with, or extend past, the session's pool). It reports false
// when the collaborator errors or returns nothing, which sends the search
// term down the local substring path.
func (e *FilterEngine) searchBase(ctx context.Context, pool []Candidate, term string) ([]Candidate, bool) {
	results, err := e.searcher.Search(ctx, term)
	if err != nil {
		metrics.SearchRequestsTotal.WithLabelValues("error").Inc()
		e.logger.Debug().Err(err).Str("term", term).Msg("search collaborator failed, falling back to local matching")
		return nil, false
	}
	if len(results) == 0 {
		metrics.SearchRequestsTotal.WithLabelValues("empty").Inc()
		return nil, false
	}
	metrics.SearchRequestsTotal.WithLabelValues("ok").Inc()

	inPool := make(map[string]struct{}, len(pool))
	for _, c := range pool {
		inPool[c.ID] = struct{}{}
	}

	matched := make([]Candidate, 0, len(results))
	for _, c := range results {
		if _, ok := inPool[c.ID]; ok {
			matched = append(matched, c)
		}
	}
	if len(matched) == 0 {
		return nil, false
	}
	return dedupeByID(matched), true
}

// filterTier runs one cascade tier. all=true requires every non-empty
// criterion to match (exact-AND); all=false accepts any match (relaxed-OR).
func filterTier(pool []Candidate, criteria Criteria, all bool) []Candidate {
	styleKeys := splitCriterion(criteria.Style)
	subjectKeys := splitCriterion(criteria.Subject)
	colorKeys := splitCriterion(criteria.Colors)
	search := strings.ToLower(strings.TrimSpace(criteria.Search))

	out := make([]Candidate, 0, len(pool))
	for _, c := range pool {
		if matchesCriteria(c, styleKeys, subjectKeys, colorKeys, search, all) {
			out = append(out, c)
		}
	}
	return out
}

// matchesCriteria evaluates one candidate against all non-empty criteria.
func matchesCriteria(c Candidate, styleKeys, subjectKeys, colorKeys []string, search string, all bool) bool {
	type check struct {
		active bool
		match  bool
	}

	checks := []check{
		{len(styleKeys) > 0, matchesStyle(c, styleKeys)},
		{len(subjectKeys) > 0, matchesSubject(c, subjectKeys)},
		{len(colorKeys) > 0, matchesColor(c, colorKeys)},
		{search != "", matchesSearch(c, search)},
	}

	anyActive := false
	for _, ch := range checks {
		if !ch.active {
			continue
		}
		anyActive = true
		if all && !ch.match {
			return false
		}
		if !all && ch.match {
			return true
		}
	}
	if !anyActive {
		return true
	}
	return all
}

// matchesStyle matches style keywords against the candidate's style, genre
// and tags. Genre is included because many style terms are stored there.
func matchesStyle(c Candidate, keywords []string) bool {
	style := strings.ToLower(c.Style)
	genre := strings.ToLower(c.Genre)
	for _, kw := range keywords {
		if strings.Contains(style, kw) || strings.Contains(genre, kw) || tagContains(c.Tags, kw) {
			return true
		}
	}
	return false
}

// matchesSubject matches subject keywords against the candidate's subject,
// title, genre and tags. Titles frequently name the subject ("Portrait of
// ..."), and subject terms like "portrait" or "still life" are often
// stored as genre.
func matchesSubject(c Candidate, keywords []string) bool {
	subject := strings.ToLower(c.Subject)
	title := strings.ToLower(c.Title)
	genre := strings.ToLower(c.Genre)
	for _, kw := range keywords {
		if strings.Contains(subject, kw) || strings.Contains(title, kw) ||
			strings.Contains(genre, kw) || tagContains(c.Tags, kw) {
			return true
		}
	}
	return false
}

// matchesColor matches colour keywords against the candidate's colour
// field and tags.
func matchesColor(c Candidate, keywords []string) bool {
	colour := strings.ToLower(c.Colour)
	for _, kw := range keywords {
		if strings.Contains(colour, kw) || tagContains(c.Tags, kw) {
			return true
		}
	}
	return false
}

// matchesSearch matches a search term against title or artist substring.
func matchesSearch(c Candidate, term string) bool {
	return strings.Contains(strings.ToLower(c.Title), term) ||
		strings.Contains(strings.ToLower(c.Artist), term)
}

// splitCriterion lowercases and splits a comma-delimited criterion.
func splitCriterion(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(strings.ToLower(s), ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// tagContains reports whether any tag contains the keyword.
func tagContains(tags []string, keyword string) bool {
	for _, tag := range tags {
		if strings.Contains(strings.ToLower(tag), keyword) {
			return true
		}
	}
	return false
}
