// Discoveryd - Art Discovery Feed and Preference Engine
// Copyright 2026 Kaleidorium
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kaleidorium/discoveryd

package discovery

import (
	"math/rand"
	"sort"
	"strings"
	"sync"

	"github.com/kaleidorium/discoveryd/internal/config"
)

// Scorer computes affinity scores between a profile and candidates and
// ranks candidate slices. It is safe for concurrent use; the jitter RNG is
// mutex-protected and seeded once for deterministic behavior.
type Scorer struct {
	cfg config.EngineConfig

	rng   *rand.Rand
	rngMu sync.Mutex
}

// NewScorer creates a scorer with the given engine tuning.
func NewScorer(cfg config.EngineConfig) *Scorer {
	seed := cfg.Seed
	if seed == 0 {
		seed = 42
	}
	return &Scorer{
		cfg: cfg,
		rng: rand.New(rand.NewSource(seed)), //nolint:gosec // jitter only, not security sensitive
	}
}

// ScoredCandidate pairs a candidate with its affinity score.
type ScoredCandidate struct {
	Candidate Candidate `json:"candidate"`
	Score     float64   `json:"score"`
}

// Score computes the weighted affinity between a profile and a candidate.
// Each category term is the accumulated profile weight for the candidate's
// resolved category value times a fixed per-category multiplier. A missing
// value on either side contributes zero.
func (s *Scorer) Score(profile *Profile, c Candidate) float64 {
	if profile == nil {
		return 0
	}

	m := s.cfg.Multipliers
	score := lookupWeight(profile.Artists, ResolveCategory(c, CategoryArtist)) * m.Artist
	score += lookupWeight(profile.Genres, ResolveCategory(c, CategoryGenre)) * m.Genre
	score += lookupWeight(profile.Styles, ResolveCategory(c, CategoryStyle)) * m.Style
	score += lookupWeight(profile.Subjects, ResolveCategory(c, CategorySubject)) * m.Subject
	score += lookupWeight(profile.Colors, ResolveCategory(c, CategoryColour)) * m.Colour
	score += lookupWeight(profile.PriceRanges, priceBucket(c.Price, s.bucketSize())) * m.Price

	return score
}

// Rank orders candidates by descending score. Ties within the jitter
// threshold are broken by uniform random jitter so long runs of equal
// scores do not produce a frozen ordering.
func (s *Scorer) Rank(profile *Profile, candidates []Candidate) []ScoredCandidate {
	type entry struct {
		sc  ScoredCandidate
		key float64
	}

	// Adding jitter in [0, threshold) to the sort key reorders exactly the
	// pairs whose score delta is below the threshold.
	threshold := s.cfg.JitterThreshold
	entries := make([]entry, 0, len(candidates))
	s.rngMu.Lock()
	for _, c := range candidates {
		sc := ScoredCandidate{Candidate: c, Score: s.Score(profile, c)}
		key := sc.Score
		if threshold > 0 {
			key += s.rng.Float64() * threshold
		}
		entries = append(entries, entry{sc: sc, key: key})
	}
	s.rngMu.Unlock()

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].key > entries[j].key
	})

	scored := make([]ScoredCandidate, len(entries))
	for i, e := range entries {
		scored[i] = e.sc
	}
	return scored
}

// RankCandidates is Rank stripped back to the candidate slice.
func (s *Scorer) RankCandidates(profile *Profile, candidates []Candidate) []Candidate {
	scored := s.Rank(profile, candidates)
	out := make([]Candidate, len(scored))
	for i, sc := range scored {
		out[i] = sc.Candidate
	}
	return out
}

func (s *Scorer) bucketSize() float64 {
	if s.cfg.PriceBucketSize <= 0 {
		return 1000
	}
	return s.cfg.PriceBucketSize
}

// lookupWeight reads a category weight with a case-insensitive secondary
// lookup when the exact-case key misses.
func lookupWeight(m map[string]float64, value string) float64 {
	if value == "" || len(m) == 0 {
		return 0
	}
	if w, ok := m[value]; ok {
		return w
	}
	lower := strings.ToLower(value)
	for k, w := range m {
		if strings.ToLower(k) == lower {
			return w
		}
	}
	return 0
}
