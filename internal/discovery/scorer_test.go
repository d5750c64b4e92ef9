// Discoveryd - Art Discovery Feed and Preference Engine
// Copyright 2026 Kaleidorium
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kaleidorium/discoveryd

package discovery

import (
	"testing"
)

func TestScoreEmptyProfileIsZero(t *testing.T) {
	scorer := NewScorer(testEngineConfig())
	c := Candidate{ID: "1", Artist: "Ada", Genre: "Abstract", Price: "500"}

	if got := scorer.Score(NewProfile(), c); got != 0 {
		t.Errorf("score on empty profile = %v, want 0", got)
	}
	if got := scorer.Score(nil, c); got != 0 {
		t.Errorf("score on nil profile = %v, want 0", got)
	}
}

func TestScoreAppliesCategoryMultipliers(t *testing.T) {
	scorer := NewScorer(testEngineConfig())
	p := NewProfile()
	p.Artists["Ada"] = 1.0
	p.Genres["Abstract"] = 1.0
	p.Styles["Minimalist"] = 1.0
	p.Subjects["Landscape"] = 1.0
	p.Colors["Blue"] = 1.0
	p.PriceRanges["1000"] = 1.0

	c := Candidate{
		ID:      "1",
		Artist:  "Ada",
		Genre:   "Abstract",
		Style:   "Minimalist",
		Subject: "Landscape",
		Colour:  "Blue",
		Price:   "1500",
	}

	// 2.5 + 2.0 + 2.0 + 1.5 + 1.0 + 0.8
	if got := scorer.Score(p, c); !almostEqual(got, 9.8) {
		t.Errorf("score = %v, want 9.8", got)
	}
}

func TestScoreMonotonicInMatchingWeight(t *testing.T) {
	scorer := NewScorer(testEngineConfig())
	c := Candidate{ID: "1", Artist: "Ada"}

	prev := 0.0
	for _, w := range []float64{0.5, 1.0, 2.0, 5.0} {
		p := NewProfile()
		p.Artists["Ada"] = w
		got := scorer.Score(p, c)
		if got <= prev {
			t.Fatalf("score not monotonic: weight %v gave %v, previous %v", w, got, prev)
		}
		prev = got
	}
}

func TestScoreCaseInsensitiveSecondaryLookup(t *testing.T) {
	scorer := NewScorer(testEngineConfig())
	p := NewProfile()
	p.Artists["ada lovelace"] = 2.0

	c := Candidate{ID: "1", Artist: "Ada Lovelace"}
	if got := scorer.Score(p, c); !almostEqual(got, 5.0) {
		t.Errorf("case-insensitive lookup missed: score = %v, want 5.0", got)
	}
}

func TestRankOrdersByScore(t *testing.T) {
	scorer := NewScorer(testEngineConfig())
	p := NewProfile()
	p.Artists["Ada"] = 2.6

	pool := []Candidate{
		{ID: "2", Artist: "Bo"},
		{ID: "1", Artist: "Ada"},
	}

	ranked := scorer.RankCandidates(p, pool)
	if ranked[0].ID != "1" || ranked[1].ID != "2" {
		t.Errorf("ranking = [%s %s], want [1 2]", ranked[0].ID, ranked[1].ID)
	}
}

func TestRankStableAboveJitterThreshold(t *testing.T) {
	scorer := NewScorer(testEngineConfig())
	p := NewProfile()
	p.Artists["A"] = 10
	p.Artists["B"] = 5
	p.Artists["C"] = 1

	pool := []Candidate{
		{ID: "c", Artist: "C"},
		{ID: "a", Artist: "A"},
		{ID: "b", Artist: "B"},
	}

	// Score gaps far exceed the jitter threshold; order must hold on
	// every pass despite the jitter.
	for i := 0; i < 50; i++ {
		ranked := scorer.RankCandidates(p, pool)
		if ranked[0].ID != "a" || ranked[1].ID != "b" || ranked[2].ID != "c" {
			t.Fatalf("pass %d: jitter reordered well-separated scores: %v", i, ids(ranked))
		}
	}
}

func TestRankJittersTies(t *testing.T) {
	scorer := NewScorer(testEngineConfig())
	p := NewProfile()

	pool := make([]Candidate, 10)
	for i := range pool {
		pool[i] = Candidate{ID: string(rune('a' + i))}
	}

	// All scores are zero; over many passes the jitter must produce more
	// than one ordering.
	first := ids(scorer.RankCandidates(p, pool))
	varied := false
	for i := 0; i < 50 && !varied; i++ {
		if got := ids(scorer.RankCandidates(p, pool)); !equalIDs(got, first) {
			varied = true
		}
	}
	if !varied {
		t.Errorf("tied scores never reordered across passes")
	}
}

func ids(cs []Candidate) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.ID
	}
	return out
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
