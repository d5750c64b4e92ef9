// Discoveryd - Art Discovery Feed and Preference Engine
// Copyright 2026 Kaleidorium
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kaleidorium/discoveryd

package discovery

import (
	"context"
	"errors"
	"testing"
)

// mockSearcher implements Searcher for testing.
type mockSearcher struct {
	results []Candidate
	err     error
	calls   int
	term    string
}

func (m *mockSearcher) Search(ctx context.Context, term string) ([]Candidate, error) {
	m.calls++
	m.term = term
	if m.err != nil {
		return nil, m.err
	}
	return m.results, nil
}

func filterPool() []Candidate {
	return []Candidate{
		{ID: "1", Title: "Harbour at Dusk", Artist: "Ada", Style: "Impressionist", Subject: "Seascape", Colour: "Blue"},
		{ID: "2", Title: "Grid Study", Artist: "Bo", Style: "Geometric", Subject: "", Colour: "Black, White", Tags: []string{"abstract", "minimal"}},
		{ID: "3", Title: "Portrait of Cy", Artist: "Dee", Style: "Realism", Genre: "Portrait", Colour: "Red"},
	}
}

func TestFilterEmptyCriteriaPassesAll(t *testing.T) {
	e := NewFilterEngine(nil)
	res := e.Apply(context.Background(), filterPool(), Criteria{})
	if !res.Matched || len(res.Pool) != 3 {
		t.Errorf("empty criteria: matched=%v len=%d", res.Matched, len(res.Pool))
	}
}

func TestFilterExactANDRequiresAllCriteria(t *testing.T) {
	e := NewFilterEngine(nil)
	res := e.Apply(context.Background(), filterPool(), Criteria{
		Style:  "Impressionist",
		Colors: "Blue",
	})

	if !res.Matched || res.Tier != TierExact {
		t.Fatalf("matched=%v tier=%v, want exact match", res.Matched, res.Tier)
	}
	if len(res.Pool) != 1 || res.Pool[0].ID != "1" {
		t.Errorf("pool = %v, want [1]", ids(res.Pool))
	}
}

func TestFilterTagsAreMatchSurface(t *testing.T) {
	e := NewFilterEngine(nil)

	// No candidate has style "Abstract" but one carries the tag; tier 1
	// must still succeed.
	res := e.Apply(context.Background(), filterPool(), Criteria{Style: "Abstract"})

	if !res.Matched || res.Tier != TierExact {
		t.Fatalf("matched=%v tier=%v, want tier-1 match via tags", res.Matched, res.Tier)
	}
	if len(res.Pool) != 1 || res.Pool[0].ID != "2" {
		t.Errorf("pool = %v, want [2]", ids(res.Pool))
	}
}

func TestFilterSubjectMatchesGenreAndTitle(t *testing.T) {
	e := NewFilterEngine(nil)

	// "portrait" lives in candidate 3's genre and title, not its subject.
	res := e.Apply(context.Background(), filterPool(), Criteria{Subject: "portrait"})

	if !res.Matched || len(res.Pool) != 1 || res.Pool[0].ID != "3" {
		t.Errorf("matched=%v pool=%v, want [3]", res.Matched, ids(res.Pool))
	}
}

func TestFilterRelaxedORWhenExactEmpty(t *testing.T) {
	e := NewFilterEngine(nil)

	// No candidate satisfies both criteria; candidate 1 satisfies the
	// colour alone.
	res := e.Apply(context.Background(), filterPool(), Criteria{
		Style:  "Cubist",
		Colors: "Blue",
	})

	if !res.Matched || res.Tier != TierRelaxed {
		t.Fatalf("matched=%v tier=%v, want relaxed", res.Matched, res.Tier)
	}
	if len(res.Pool) != 1 || res.Pool[0].ID != "1" {
		t.Errorf("pool = %v, want [1]", ids(res.Pool))
	}
}

func TestFilterNoMatchReturnsFallbackState(t *testing.T) {
	e := NewFilterEngine(nil)

	res := e.Apply(context.Background(), filterPool(), Criteria{Style: "Brutalist"})

	if res.Matched {
		t.Fatalf("expected no-match state")
	}
	if res.Tier != TierNone {
		t.Errorf("tier = %v, want none", res.Tier)
	}
	// The full pool comes back as the fallback display set.
	if len(res.Pool) != 3 {
		t.Errorf("fallback pool len = %d, want 3", len(res.Pool))
	}
}

func TestFilterCommaDelimitedCriteriaOrWithin(t *testing.T) {
	e := NewFilterEngine(nil)

	res := e.Apply(context.Background(), filterPool(), Criteria{Colors: "green, red"})

	if !res.Matched || len(res.Pool) != 1 || res.Pool[0].ID != "3" {
		t.Errorf("pool = %v, want [3]", ids(res.Pool))
	}
}

func TestFilterLocalSearchMatchesTitleOrArtist(t *testing.T) {
	e := NewFilterEngine(nil)

	res := e.Apply(context.Background(), filterPool(), Criteria{Search: "harbour"})
	if !res.Matched || len(res.Pool) != 1 || res.Pool[0].ID != "1" {
		t.Errorf("title search: pool = %v, want [1]", ids(res.Pool))
	}

	res = e.Apply(context.Background(), filterPool(), Criteria{Search: "dee"})
	if !res.Matched || len(res.Pool) != 1 || res.Pool[0].ID != "3" {
		t.Errorf("artist search: pool = %v, want [3]", ids(res.Pool))
	}
}

func TestFilterSearchCollaboratorProvidesBaseSet(t *testing.T) {
	pool := filterPool()
	searcher := &mockSearcher{results: []Candidate{pool[0], pool[1]}}
	e := NewFilterEngine(searcher)

	res := e.Apply(context.Background(), pool, Criteria{
		Search: "study",
		Colors: "black",
	})

	if searcher.calls != 1 || searcher.term != "study" {
		t.Fatalf("collaborator not queried: calls=%d term=%q", searcher.calls, searcher.term)
	}
	if !res.SearchAugmented {
		t.Errorf("result not marked search-augmented")
	}
	// Non-search criteria run against the reduced set: only candidate 2
	// is black.
	if !res.Matched || len(res.Pool) != 1 || res.Pool[0].ID != "2" {
		t.Errorf("pool = %v, want [2]", ids(res.Pool))
	}
}

func TestFilterSearchCollaboratorErrorFallsBackLocal(t *testing.T) {
	searcher := &mockSearcher{err: errors.New("search unavailable")}
	e := NewFilterEngine(searcher)

	res := e.Apply(context.Background(), filterPool(), Criteria{Search: "harbour"})

	if res.SearchAugmented {
		t.Errorf("errored collaborator marked augmented")
	}
	if !res.Matched || len(res.Pool) != 1 || res.Pool[0].ID != "1" {
		t.Errorf("local fallback failed: pool = %v", ids(res.Pool))
	}
}

func TestFilterSearchCollaboratorEmptyFallsBackLocal(t *testing.T) {
	searcher := &mockSearcher{results: nil}
	e := NewFilterEngine(searcher)

	res := e.Apply(context.Background(), filterPool(), Criteria{Search: "grid"})

	if !res.Matched || len(res.Pool) != 1 || res.Pool[0].ID != "2" {
		t.Errorf("local fallback failed: pool = %v", ids(res.Pool))
	}
}

func TestFilterDeduplicatesByID(t *testing.T) {
	pool := filterPool()
	// Collaborator response overlapping with itself.
	searcher := &mockSearcher{results: []Candidate{pool[0], pool[0]}}
	e := NewFilterEngine(searcher)

	res := e.Apply(context.Background(), pool, Criteria{Search: "harbour"})

	seen := make(map[string]int)
	for _, c := range res.Pool {
		seen[c.ID]++
	}
	for id, n := range seen {
		if n > 1 {
			t.Errorf("candidate %s appears %d times", id, n)
		}
	}
}
