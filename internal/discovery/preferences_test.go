// Discoveryd - Art Discovery Feed and Preference Engine
// Copyright 2026 Kaleidorium
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kaleidorium/discoveryd

package discovery

import (
	"math"
	"testing"

	"github.com/kaleidorium/discoveryd/internal/config"
)

// testEngineConfig mirrors the production defaults.
func testEngineConfig() config.EngineConfig {
	return config.EngineConfig{
		Multipliers: config.CategoryMultipliers{
			Artist:  2.5,
			Genre:   2.0,
			Style:   2.0,
			Subject: 1.5,
			Colour:  1.0,
			Price:   0.8,
		},
		AddWeight:       2.0,
		LikeWeight:      0.6,
		DislikeWeight:   -0.8,
		JitterThreshold: 0.2,
		PriceBucketSize: 1000,
		Seed:            1,
	}
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestApplyFeedbackAccumulatesWeights(t *testing.T) {
	prefs := NewPreferences(testEngineConfig())
	c := Candidate{
		ID:      "a1",
		Artist:  "Ada",
		Genre:   "Abstract",
		Style:   "Minimalist",
		Subject: "Landscape",
		Colour:  "Blue",
		Price:   "$1,250.00",
	}

	p := prefs.ApplyFeedback(nil, c, ActionAdd)
	p = prefs.ApplyFeedback(p, c, ActionLike)

	if !almostEqual(p.Artists["Ada"], 2.6) {
		t.Errorf("artist weight = %v, want 2.6", p.Artists["Ada"])
	}
	if !almostEqual(p.Genres["Abstract"], 2.6) {
		t.Errorf("genre weight = %v, want 2.6", p.Genres["Abstract"])
	}
	if !almostEqual(p.PriceRanges["1000"], 2.6) {
		t.Errorf("price bucket weight = %v, want 2.6 at bucket 1000", p.PriceRanges["1000"])
	}
	if p.InteractionCount != 2 {
		t.Errorf("interaction count = %d, want 2", p.InteractionCount)
	}
	if !p.Viewed("a1") {
		t.Errorf("candidate not marked viewed")
	}
}

func TestApplyFeedbackOrderIndependentForWeights(t *testing.T) {
	prefs := NewPreferences(testEngineConfig())
	ada := Candidate{ID: "1", Artist: "Ada"}
	bo := Candidate{ID: "2", Artist: "Bo"}

	// add(Ada), like(Bo), like(Ada) in two interleavings.
	p1 := prefs.ApplyFeedback(nil, ada, ActionAdd)
	p1 = prefs.ApplyFeedback(p1, bo, ActionLike)
	p1 = prefs.ApplyFeedback(p1, ada, ActionLike)

	p2 := prefs.ApplyFeedback(nil, ada, ActionAdd)
	p2 = prefs.ApplyFeedback(p2, ada, ActionLike)
	p2 = prefs.ApplyFeedback(p2, bo, ActionLike)

	if !almostEqual(p1.Artists["Ada"], p2.Artists["Ada"]) || !almostEqual(p1.Artists["Ada"], 2.6) {
		t.Errorf("Ada weight order-dependent: %v vs %v", p1.Artists["Ada"], p2.Artists["Ada"])
	}
	if !almostEqual(p1.Artists["Bo"], 0.6) {
		t.Errorf("Bo weight = %v, want 0.6", p1.Artists["Bo"])
	}
}

func TestApplyFeedbackDislikeSubtracts(t *testing.T) {
	prefs := NewPreferences(testEngineConfig())
	c := Candidate{ID: "x", Artist: "Cy"}

	p := prefs.ApplyFeedback(nil, c, ActionLike)
	p = prefs.ApplyFeedback(p, c, ActionDislike)

	if !almostEqual(p.Artists["Cy"], -0.2) {
		t.Errorf("weight after like+dislike = %v, want -0.2", p.Artists["Cy"])
	}
}

func TestApplyFeedbackMissingFieldsNoSignal(t *testing.T) {
	prefs := NewPreferences(testEngineConfig())
	c := Candidate{ID: "bare"}

	p := prefs.ApplyFeedback(nil, c, ActionLike)

	// Absence means weight zero, not an explicit zero entry.
	if len(p.Artists) != 0 || len(p.Genres) != 0 || len(p.PriceRanges) != 0 {
		t.Errorf("empty fields created category entries: %+v", p)
	}
	if !p.Viewed("bare") {
		t.Errorf("candidate not marked viewed")
	}
	if p.InteractionCount != 1 {
		t.Errorf("interaction count = %d, want 1", p.InteractionCount)
	}
}

func TestApplyFeedbackViewDoesNotCount(t *testing.T) {
	prefs := NewPreferences(testEngineConfig())
	c := Candidate{ID: "v", Artist: "Ada"}

	p := prefs.ApplyFeedback(nil, c, ActionView)

	if p.InteractionCount != 0 {
		t.Errorf("view incremented interaction count")
	}
	if len(p.Artists) != 0 {
		t.Errorf("view added category weight")
	}
	if !p.Viewed("v") {
		t.Errorf("view did not mark candidate viewed")
	}
}

func TestApplyFeedbackViewCountsWhenConfigured(t *testing.T) {
	cfg := testEngineConfig()
	cfg.CountViews = true
	prefs := NewPreferences(cfg)

	p := prefs.ApplyFeedback(nil, Candidate{ID: "v"}, ActionView)
	if p.InteractionCount != 1 {
		t.Errorf("interaction count = %d, want 1", p.InteractionCount)
	}
}

func TestViewedIdempotent(t *testing.T) {
	prefs := NewPreferences(testEngineConfig())
	c := Candidate{ID: "same"}

	p := prefs.ApplyFeedback(nil, c, ActionLike)
	p = prefs.ApplyFeedback(p, c, ActionLike)

	if len(p.ViewedIDs) != 1 {
		t.Errorf("viewed set has %d entries, want 1", len(p.ViewedIDs))
	}
}

func TestResetViewedPreservesWeights(t *testing.T) {
	prefs := NewPreferences(testEngineConfig())
	p := prefs.ApplyFeedback(nil, Candidate{ID: "1", Artist: "Ada"}, ActionAdd)
	p = prefs.ApplyFeedback(p, Candidate{ID: "2", Artist: "Bo"}, ActionLike)

	p = prefs.ResetViewed(p)

	if len(p.ViewedIDs) != 0 {
		t.Errorf("viewed set not cleared: %v", p.ViewedIDs)
	}
	if !almostEqual(p.Artists["Ada"], 2.0) || !almostEqual(p.Artists["Bo"], 0.6) {
		t.Errorf("weights not preserved: %+v", p.Artists)
	}
	if p.InteractionCount != 2 {
		t.Errorf("interaction count not preserved: %d", p.InteractionCount)
	}
}

func TestPriceBucket(t *testing.T) {
	prefs := NewPreferences(testEngineConfig())

	tests := []struct {
		price string
		want  string
	}{
		{"$1,250.00", "1000"},
		{"999", "0"},
		{"1000", "1000"},
		{"EUR 12,500", "12000"},
		{"1500.99", "1000"},
		{"", ""},
		{"priceless", ""},
		{"contact artist", ""},
	}

	for _, tt := range tests {
		if got := prefs.PriceBucket(tt.price); got != tt.want {
			t.Errorf("PriceBucket(%q) = %q, want %q", tt.price, got, tt.want)
		}
	}
}

func TestResolveCategoryStructuredWins(t *testing.T) {
	c := Candidate{
		Subject: "Portrait",
		Tags:    []string{"landscape"},
	}
	// Structured field takes precedence even when tags disagree.
	if got := ResolveCategory(c, CategorySubject); got != "Portrait" {
		t.Errorf("ResolveCategory = %q, want Portrait", got)
	}
}

func TestResolveCategoryTagFallback(t *testing.T) {
	tests := []struct {
		name     string
		c        Candidate
		category Category
		want     string
	}{
		{
			name:     "subject from tag",
			c:        Candidate{Tags: []string{"moody", "Seascape Study"}},
			category: CategorySubject,
			want:     "seascape",
		},
		{
			name:     "genre from tag case-insensitive",
			c:        Candidate{Tags: []string{"ABSTRACT"}},
			category: CategoryGenre,
			want:     "abstract",
		},
		{
			name:     "colour from tag",
			c:        Candidate{Tags: []string{"deep blue tones"}},
			category: CategoryColour,
			want:     "blue",
		},
		{
			name:     "no vocabulary match",
			c:        Candidate{Tags: []string{"untitled"}},
			category: CategorySubject,
			want:     "",
		},
		{
			name:     "artist never falls back to tags",
			c:        Candidate{Tags: []string{"portrait"}},
			category: CategoryArtist,
			want:     "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolveCategory(tt.c, tt.category); got != tt.want {
				t.Errorf("ResolveCategory = %q, want %q", got, tt.want)
			}
		})
	}
}

// The resolver must be the single path for category reads: a tag-resolved
// value written by ApplyFeedback has to be found again by the scorer.
func TestResolverConsistencyBetweenUpdateAndScore(t *testing.T) {
	cfg := testEngineConfig()
	prefs := NewPreferences(cfg)
	scorer := NewScorer(cfg)

	c := Candidate{ID: "t1", Tags: []string{"a stormy seascape"}}
	p := prefs.ApplyFeedback(nil, c, ActionAdd)

	other := Candidate{ID: "t2", Tags: []string{"seascape at dawn"}}
	if score := scorer.Score(p, other); score <= 0 {
		t.Errorf("tag-resolved weight invisible to scorer: score = %v", score)
	}
}

func TestProfileCloneIsIndependent(t *testing.T) {
	p := NewProfile()
	p.Artists["ada vane"] = 0.6
	p.ViewedIDs["a1"] = struct{}{}
	p.InteractionCount = 1

	snapshot := p.Clone()

	p.Artists["ada vane"] = 2.6
	p.ViewedIDs["a2"] = struct{}{}
	p.InteractionCount = 2

	if snapshot.Artists["ada vane"] != 0.6 {
		t.Errorf("clone artist weight = %v, want 0.6", snapshot.Artists["ada vane"])
	}
	if _, ok := snapshot.ViewedIDs["a2"]; ok {
		t.Error("clone viewed set shares storage with the original")
	}
	if snapshot.InteractionCount != 1 {
		t.Errorf("clone interaction count = %d, want 1", snapshot.InteractionCount)
	}
}

func TestProfileCloneNil(t *testing.T) {
	var p *Profile
	if p.Clone() != nil {
		t.Error("nil profile clone should stay nil")
	}
}
