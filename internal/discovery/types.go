// Discoveryd - Art Discovery Feed and Preference Engine
// Copyright 2026 Kaleidorium
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kaleidorium/discoveryd

package discovery

import (
	"context"
	"time"
)

// Note: This package has no dependencies on other internal packages beyond
// logging and metrics. Collaborator interfaces allow integration with the
// store, delegate and search packages without circular imports.

// Candidate represents one artwork eligible for ranking and display.
// Candidates are immutable for the duration of a session.
type Candidate struct {
	// ID is the stable artwork identifier. Uniqueness within a pool is
	// enforced after every merge operation.
	ID string `json:"id"`

	// Title is the artwork title.
	Title string `json:"title"`

	// Artist is the artist name.
	Artist string `json:"artist"`

	// Medium is the physical medium (oil on canvas, digital, ...).
	Medium string `json:"medium,omitempty"`

	// Dimensions is the display dimensions string.
	Dimensions string `json:"dimensions,omitempty"`

	// Year is the creation year as entered by the artist.
	Year string `json:"year,omitempty"`

	// Genre is the structured genre field.
	Genre string `json:"genre,omitempty"`

	// Style is the structured style field.
	Style string `json:"style,omitempty"`

	// Subject is the structured subject field.
	Subject string `json:"subject,omitempty"`

	// Colour is the dominant colour description, possibly comma-separated.
	Colour string `json:"colour,omitempty"`

	// Price is a free-text price containing a numeric amount.
	// It is parsed defensively; unparseable prices carry no signal.
	Price string `json:"price,omitempty"`

	// Tags is the artist-supplied tag set.
	Tags []string `json:"tags,omitempty"`

	// CreatedAt is when the artwork entered the catalog.
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// Action classifies a feedback event.
type Action int

const (
	// ActionView marks a candidate as seen without an explicit signal.
	ActionView Action = iota
	// ActionLike is a positive signal.
	ActionLike
	// ActionDislike is a negative signal.
	ActionDislike
	// ActionAdd adds the candidate to the viewer's collection, the
	// strongest positive signal.
	ActionAdd
)

// String returns a human-readable action name.
func (a Action) String() string {
	switch a {
	case ActionView:
		return "view"
	case ActionLike:
		return "like"
	case ActionDislike:
		return "dislike"
	case ActionAdd:
		return "add"
	default:
		return "unknown"
	}
}

// ParseAction converts a wire action string to an Action.
// The second return is false for unknown actions.
func ParseAction(s string) (Action, bool) {
	switch s {
	case "view":
		return ActionView, true
	case "like":
		return ActionLike, true
	case "dislike":
		return ActionDislike, true
	case "add":
		return ActionAdd, true
	default:
		return ActionView, false
	}
}

// Feedback is a transient feedback event. It is consumed immediately to
// mutate a preference profile and is never persisted as a record.
type Feedback struct {
	CandidateID string `json:"candidate_id"`
	Action      Action `json:"action"`
	ViewerID    string `json:"viewer_id"`
}

// Profile accumulates one viewer's taste weights across the six fixed
// categories. A category map entry exists only for values that have
// received at least one weighted event; absence means weight zero.
type Profile struct {
	Artists     map[string]float64 `json:"artists"`
	Genres      map[string]float64 `json:"genres"`
	Styles      map[string]float64 `json:"styles"`
	Subjects    map[string]float64 `json:"subjects"`
	Colors      map[string]float64 `json:"colors"`
	PriceRanges map[string]float64 `json:"price_ranges"`

	// ViewedIDs is the set of candidate ids the viewer has seen.
	ViewedIDs map[string]struct{} `json:"viewed_ids"`

	// InteractionCount is a monotonic counter of weighted events.
	InteractionCount int `json:"interaction_count"`
}

// NewProfile returns an empty profile with all category maps allocated.
func NewProfile() *Profile {
	return &Profile{
		Artists:     make(map[string]float64),
		Genres:      make(map[string]float64),
		Styles:      make(map[string]float64),
		Subjects:    make(map[string]float64),
		Colors:      make(map[string]float64),
		PriceRanges: make(map[string]float64),
		ViewedIDs:   make(map[string]struct{}),
	}
}

// Clone returns a deep copy of the profile. Callers handing a profile to
// a background writer must clone it first; the originating goroutine keeps
// mutating the maps on subsequent feedback.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	out := &Profile{
		Artists:          cloneWeights(p.Artists),
		Genres:           cloneWeights(p.Genres),
		Styles:           cloneWeights(p.Styles),
		Subjects:         cloneWeights(p.Subjects),
		Colors:           cloneWeights(p.Colors),
		PriceRanges:      cloneWeights(p.PriceRanges),
		ViewedIDs:        make(map[string]struct{}, len(p.ViewedIDs)),
		InteractionCount: p.InteractionCount,
	}
	for id := range p.ViewedIDs {
		out.ViewedIDs[id] = struct{}{}
	}
	return out
}

func cloneWeights(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// ensureMaps allocates any nil maps on a profile deserialized from storage.
func (p *Profile) ensureMaps() {
	if p.Artists == nil {
		p.Artists = make(map[string]float64)
	}
	if p.Genres == nil {
		p.Genres = make(map[string]float64)
	}
	if p.Styles == nil {
		p.Styles = make(map[string]float64)
	}
	if p.Subjects == nil {
		p.Subjects = make(map[string]float64)
	}
	if p.Colors == nil {
		p.Colors = make(map[string]float64)
	}
	if p.PriceRanges == nil {
		p.PriceRanges = make(map[string]float64)
	}
	if p.ViewedIDs == nil {
		p.ViewedIDs = make(map[string]struct{})
	}
}

// Viewed reports whether the candidate id has been seen.
func (p *Profile) Viewed(id string) bool {
	if p == nil || p.ViewedIDs == nil {
		return false
	}
	_, ok := p.ViewedIDs[id]
	return ok
}

// Category identifies one of the six preference categories.
type Category int

const (
	CategoryArtist Category = iota
	CategoryGenre
	CategoryStyle
	CategorySubject
	CategoryColour
	CategoryPrice
)

// String returns the category name used in logs.
func (c Category) String() string {
	switch c {
	case CategoryArtist:
		return "artist"
	case CategoryGenre:
		return "genre"
	case CategoryStyle:
		return "style"
	case CategorySubject:
		return "subject"
	case CategoryColour:
		return "colour"
	case CategoryPrice:
		return "price"
	default:
		return "unknown"
	}
}

// Criteria narrows a candidate pool. Each field is a comma-delimited
// free-text string, possibly empty. Criteria are not persisted.
type Criteria struct {
	Style   string `json:"style"`
	Subject string `json:"subject"`
	Colors  string `json:"colors"`
	Search  string `json:"search"`
}

// Empty reports whether no criterion is set.
func (c Criteria) Empty() bool {
	return c.Style == "" && c.Subject == "" && c.Colors == "" && c.Search == ""
}

// Tier identifies the filter cascade stage that produced a result.
type Tier int

const (
	// TierNone means no tier matched; the result is a fallback state.
	TierNone Tier = iota
	// TierExact is the exact-AND tier.
	TierExact
	// TierRelaxed is the relaxed-OR tier.
	TierRelaxed
)

// String returns the tier name used in logs and metrics.
func (t Tier) String() string {
	switch t {
	case TierExact:
		return "exact"
	case TierRelaxed:
		return "relaxed"
	default:
		return "none"
	}
}

// FilterResult is the outcome of a filter operation. Matched false is a
// normal, user-correctable outcome: the full pool is returned as the
// fallback display set alongside a "no matches" signal, never an error.
type FilterResult struct {
	Pool    []Candidate `json:"pool"`
	Matched bool        `json:"matched"`
	Tier    Tier        `json:"-"`

	// SearchAugmented reports whether the external search collaborator
	// supplied the search-matched base set.
	SearchAugmented bool `json:"-"`
}

// RankMode identifies how a refresh ranked the pool.
type RankMode int

const (
	// RankLocal means the local scorer ranked the pool.
	RankLocal RankMode = iota
	// RankDelegated means the external ranking collaborator ordered it.
	RankDelegated
	// RankFallback means delegation failed and the local scorer took over.
	RankFallback
	// RankExhausted means every candidate was viewed and the viewed set
	// was reset.
	RankExhausted
)

// String returns the mode name used in logs and metrics.
func (m RankMode) String() string {
	switch m {
	case RankLocal:
		return "local"
	case RankDelegated:
		return "delegated"
	case RankFallback:
		return "fallback"
	case RankExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// Ranker is the delegated ranking collaborator. It returns candidate ids
// in recommendation order and must tolerate partial responses; ids it does
// not mention are appended by the orchestrator in original order.
type Ranker interface {
	Rank(ctx context.Context, profile *Profile, candidates []Candidate) ([]string, error)
}

// Searcher is the external text-search collaborator.
type Searcher interface {
	Search(ctx context.Context, term string) ([]Candidate, error)
}
