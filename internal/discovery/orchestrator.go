// Discoveryd - Art Discovery Feed and Preference Engine
// Copyright 2026 Kaleidorium
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kaleidorium/discoveryd

package discovery

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/kaleidorium/discoveryd/internal/config"
	"github.com/kaleidorium/discoveryd/internal/logging"
	"github.com/kaleidorium/discoveryd/internal/metrics"
)

// Orchestrator decides, per viewer, whether to rank locally or delegate to
// the external ranking collaborator, merges partial delegate responses,
// applies feedback to profiles and advances the exhaustion state machine.
//
// Operations are value-in/value-out; the orchestrator holds no per-viewer
// state, so it is safe to share across viewers as long as each viewer's
// profile and pool are written by one goroutine at a time.
type Orchestrator struct {
	prefs  *Preferences
	scorer *Scorer
	ranker Ranker
	logger zerolog.Logger
}

// NewOrchestrator creates an orchestrator. ranker may be nil; all viewers
// are then ranked locally.
func NewOrchestrator(cfg config.EngineConfig, ranker Ranker) *Orchestrator {
	return &Orchestrator{
		prefs:  NewPreferences(cfg),
		scorer: NewScorer(cfg),
		ranker: ranker,
		logger: logging.With().Str("component", "orchestrator").Logger(),
	}
}

// Preferences exposes the preference store for callers that apply view
// events without a full refresh.
func (o *Orchestrator) Preferences() *Preferences {
	return o.prefs
}

// Scorer exposes the local scorer.
func (o *Orchestrator) Scorer() *Scorer {
	return o.scorer
}

// RefreshInput carries one refresh request.
type RefreshInput struct {
	// Profile is the viewer's profile; nil for a first-contact viewer.
	Profile *Profile

	// Pool is the current candidate pool in display order.
	Pool []Candidate

	// Cursor is the viewer's position in Pool.
	Cursor int

	// Feedback, when non-nil, is applied before re-ranking so the updated
	// weights affect the acted-on candidate's own removal and reordering.
	Feedback *Feedback

	// Identified selects delegated ranking; anonymous viewers always rank
	// locally.
	Identified bool
}

// RefreshResult carries the re-ranked pool and the updated viewer state.
type RefreshResult struct {
	Profile *Profile
	Pool    []Candidate
	Cursor  int
	Mode    RankMode
}

// Refresh applies pending feedback, re-ranks the unseen remainder of the
// pool and advances the cursor per the action's policy. Collaborator
// failures never surface; they degrade to local ranking.
func (o *Orchestrator) Refresh(ctx context.Context, in RefreshInput) RefreshResult {
	profile := in.Profile
	if profile == nil {
		profile = NewProfile()
	}
	profile.ensureMaps()

	pool := in.Pool
	var action Action
	hasFeedback := false

	if in.Feedback != nil {
		if c, ok := findCandidate(pool, in.Feedback.CandidateID); ok {
			// Feedback application always precedes the re-rank it
			// triggers.
			profile = o.prefs.ApplyFeedback(profile, c, in.Feedback.Action)
			action = in.Feedback.Action
			hasFeedback = true
			metrics.FeedbackEventsTotal.WithLabelValues(action.String()).Inc()
		} else {
			metrics.FeedbackRejectedTotal.WithLabelValues("unknown_candidate").Inc()
			o.logger.Warn().
				Str("candidate_id", in.Feedback.CandidateID).
				Msg("feedback for unknown candidate ignored")
		}
	}

	cursor := in.Cursor
	if cursor < 0 {
		cursor = 0
	}

	if hasFeedback && action == ActionDislike {
		pool, cursor = removeCandidate(pool, in.Feedback.CandidateID, cursor)
	}

	unseen := unseenOf(pool, profile)

	if len(unseen) == 0 {
		// Exhaustion: start over with the original pool, weights intact.
		profile = o.prefs.ResetViewed(profile)
		metrics.RefreshesTotal.WithLabelValues(RankExhausted.String()).Inc()
		o.logger.Debug().Int("pool", len(pool)).Msg("pool exhausted, viewed set reset")
		return RefreshResult{
			Profile: profile,
			Pool:    pool,
			Cursor:  0,
			Mode:    RankExhausted,
		}
	}

	ranked, mode := o.rank(ctx, profile, unseen, in.Identified)

	// Previously viewed candidates stay in the pool behind the ranked
	// unseen set, preserving membership for the like/add cursor policy.
	newPool := dedupeByID(append(ranked, viewedOf(pool, profile, ranked)...))

	metrics.RefreshesTotal.WithLabelValues(mode.String()).Inc()

	return RefreshResult{
		Profile: profile,
		Pool:    newPool,
		Cursor:  nextCursor(action, hasFeedback, cursor, len(newPool)),
		Mode:    mode,
	}
}

// rank orders the unseen candidates, delegating for identified viewers and
// falling back silently to the local scorer on any delegate failure.
func (o *Orchestrator) rank(ctx context.Context, profile *Profile, unseen []Candidate, identified bool) ([]Candidate, RankMode) {
	if !identified || o.ranker == nil {
		return o.scorer.RankCandidates(profile, unseen), RankLocal
	}

	ids, err := o.ranker.Rank(ctx, profile, unseen)
	if err != nil {
		// The fallback must be invisible to the viewer; diagnostics only.
		o.logger.Debug().Err(err).Msg("delegated ranking failed, using local scorer")
		return o.scorer.RankCandidates(profile, unseen), RankFallback
	}

	return mergeDelegated(unseen, ids), RankDelegated
}

// mergeDelegated orders candidates by the delegate's id list, then appends
// every candidate the delegate did not mention in original order. Unknown
// ids in the response are skipped; duplicates collapse to their first
// occurrence.
func mergeDelegated(candidates []Candidate, orderedIDs []string) []Candidate {
	byID := make(map[string]Candidate, len(candidates))
	for _, c := range candidates {
		byID[c.ID] = c
	}

	used := make(map[string]struct{}, len(orderedIDs))
	merged := make([]Candidate, 0, len(candidates))

	for _, id := range orderedIDs {
		if _, seen := used[id]; seen {
			continue
		}
		c, ok := byID[id]
		if !ok {
			continue
		}
		merged = append(merged, c)
		used[id] = struct{}{}
	}

	for _, c := range candidates {
		if _, seen := used[c.ID]; !seen {
			merged = append(merged, c)
			used[c.ID] = struct{}{}
		}
	}

	return merged
}

// nextCursor applies the per-action cursor policy. Dislike keeps whatever
// position removeCandidate settled on, even one past the end; like and add
// advance by one, wrapping to zero from the last index; everything else
// re-ranks from the top.
func nextCursor(action Action, hasFeedback bool, cursor, poolLen int) int {
	if poolLen == 0 {
		return 0
	}
	if !hasFeedback {
		return 0
	}

	switch action {
	case ActionDislike:
		return cursor
	case ActionLike, ActionAdd:
		if cursor >= poolLen-1 {
			return 0
		}
		return cursor + 1
	default:
		return 0
	}
}

// unseenOf returns pool candidates not in the viewed set, preserving order.
// Exclusion is by id, never by value equality.
func unseenOf(pool []Candidate, profile *Profile) []Candidate {
	unseen := make([]Candidate, 0, len(pool))
	for _, c := range pool {
		if !profile.Viewed(c.ID) {
			unseen = append(unseen, c)
		}
	}
	return unseen
}

// viewedOf returns pool candidates already viewed and not present in the
// ranked set, preserving original order.
func viewedOf(pool []Candidate, profile *Profile, ranked []Candidate) []Candidate {
	inRanked := make(map[string]struct{}, len(ranked))
	for _, c := range ranked {
		inRanked[c.ID] = struct{}{}
	}
	viewed := make([]Candidate, 0, len(pool))
	for _, c := range pool {
		if _, ok := inRanked[c.ID]; ok {
			continue
		}
		viewed = append(viewed, c)
	}
	return viewed
}

// removeCandidate drops the candidate with the given id. A removal behind
// the cursor leaves it alone; a removal at or after it clamps the cursor
// back into range when the pool shrinks under it.
func removeCandidate(pool []Candidate, id string, cursor int) ([]Candidate, int) {
	out := make([]Candidate, 0, len(pool))
	removedAt := -1
	for i, c := range pool {
		if c.ID == id && removedAt == -1 {
			removedAt = i
			continue
		}
		out = append(out, c)
	}
	if removedAt == -1 {
		return pool, cursor
	}
	if removedAt >= cursor && cursor >= len(out) && len(out) > 0 {
		cursor = len(out) - 1
	}
	if cursor < 0 {
		cursor = 0
	}
	return out, cursor
}

// findCandidate locates a candidate by id.
func findCandidate(pool []Candidate, id string) (Candidate, bool) {
	for _, c := range pool {
		if c.ID == id {
			return c, true
		}
	}
	return Candidate{}, false
}

// dedupeByID enforces id uniqueness after merge operations, keeping the
// first occurrence.
func dedupeByID(pool []Candidate) []Candidate {
	seen := make(map[string]struct{}, len(pool))
	out := make([]Candidate, 0, len(pool))
	for _, c := range pool {
		if _, dup := seen[c.ID]; dup {
			continue
		}
		seen[c.ID] = struct{}{}
		out = append(out, c)
	}
	return out
}
