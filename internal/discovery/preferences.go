// Discoveryd - Art Discovery Feed and Preference Engine
// Copyright 2026 Kaleidorium
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kaleidorium/discoveryd

package discovery

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/kaleidorium/discoveryd/internal/config"
)

// CollectionMatchWeight is reserved. It existed as a tuning constant for
// boosting candidates matching a viewer's collection but is not applied
// anywhere; do not wire it without deciding its trigger.
const CollectionMatchWeight = 1.5

// tagVocabularies holds the fixed per-category keyword vocabularies for the
// tag-fallback rule. When a structured field is empty, tags are scanned
// case-insensitively and the first vocabulary match becomes the category
// value. The same resolver runs at weight-update time and at scoring time;
// the two must never diverge.
var tagVocabularies = map[Category][]string{
	CategoryGenre: {
		"abstract", "figurative", "impressionism", "expressionism",
		"surrealism", "realism", "minimalism", "pop art", "street art",
		"conceptual",
	},
	CategoryStyle: {
		"abstract", "impressionist", "expressionist", "surrealist",
		"minimalist", "realist", "cubist", "geometric", "contemporary",
		"pop",
	},
	CategorySubject: {
		"portrait", "landscape", "still life", "figure", "cityscape",
		"seascape", "nature", "urban", "animal", "flower",
	},
	CategoryColour: {
		"red", "blue", "green", "yellow", "orange", "purple", "pink",
		"black", "white", "grey", "gold", "monochrome",
	},
}

// priceSanitize strips everything that is not part of a numeric amount.
var priceSanitize = regexp.MustCompile(`[^0-9.\-]+`)

// Preferences applies feedback events to viewer profiles. All operation on
// missing or unknown fields degrades to "no signal"; Preferences never
// returns an error.
type Preferences struct {
	cfg config.EngineConfig
}

// NewPreferences creates a preference store with the given engine tuning.
func NewPreferences(cfg config.EngineConfig) *Preferences {
	return &Preferences{cfg: cfg}
}

// Weight returns the category-map delta for an action. View events carry
// no weight.
func (p *Preferences) Weight(action Action) float64 {
	switch action {
	case ActionAdd:
		return p.cfg.AddWeight
	case ActionLike:
		return p.cfg.LikeWeight
	case ActionDislike:
		return p.cfg.DislikeWeight
	default:
		return 0
	}
}

// ApplyFeedback folds one feedback event into the profile and returns it.
// A nil profile is created lazily. The candidate id is always added to the
// viewed set; the interaction counter increments for weighted actions, and
// for views only when the engine is configured to count them.
func (p *Preferences) ApplyFeedback(profile *Profile, c Candidate, action Action) *Profile {
	if profile == nil {
		profile = NewProfile()
	}
	profile.ensureMaps()

	profile.ViewedIDs[c.ID] = struct{}{}

	if action == ActionView {
		if p.cfg.CountViews {
			profile.InteractionCount++
		}
		return profile
	}

	weight := p.Weight(action)

	addWeight(profile.Artists, ResolveCategory(c, CategoryArtist), weight)
	addWeight(profile.Genres, ResolveCategory(c, CategoryGenre), weight)
	addWeight(profile.Styles, ResolveCategory(c, CategoryStyle), weight)
	addWeight(profile.Subjects, ResolveCategory(c, CategorySubject), weight)
	addWeight(profile.Colors, ResolveCategory(c, CategoryColour), weight)
	addWeight(profile.PriceRanges, p.PriceBucket(c.Price), weight)

	profile.InteractionCount++
	return profile
}

// ResetViewed clears the viewed set, preserving all accumulated weights.
// Invoked when every candidate in the current pool has been viewed.
func (p *Preferences) ResetViewed(profile *Profile) *Profile {
	if profile == nil {
		return NewProfile()
	}
	profile.ViewedIDs = make(map[string]struct{})
	return profile
}

// PriceBucket parses a free-text price and returns the label of the
// nearest lower bucket multiple, or "" when the price carries no amount.
func (p *Preferences) PriceBucket(price string) string {
	size := p.cfg.PriceBucketSize
	if size <= 0 {
		size = 1000
	}
	return priceBucket(price, size)
}

// priceBucket is the shared bucketing routine used by both the preference
// store and the scorer.
func priceBucket(price string, size float64) string {
	if price == "" {
		return ""
	}
	cleaned := priceSanitize.ReplaceAllString(price, "")
	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return ""
	}
	bucket := int64(value/size) * int64(size)
	if value < 0 {
		return ""
	}
	return strconv.FormatInt(bucket, 10)
}

// ResolveCategory returns the candidate's value for a category: the
// structured field when present, else the first tag-vocabulary match.
// Structured fields take precedence even when tags disagree.
func ResolveCategory(c Candidate, category Category) string {
	var structured string
	switch category {
	case CategoryArtist:
		// Artists have no tag vocabulary; the structured field is all
		// there is.
		return c.Artist
	case CategoryGenre:
		structured = c.Genre
	case CategoryStyle:
		structured = c.Style
	case CategorySubject:
		structured = c.Subject
	case CategoryColour:
		structured = c.Colour
	default:
		return ""
	}

	if structured != "" {
		return structured
	}
	return tagKeywordMatch(c.Tags, category)
}

// tagKeywordMatch scans tags in order and returns the first vocabulary
// keyword contained in any tag, canonicalized to the keyword itself.
func tagKeywordMatch(tags []string, category Category) string {
	vocab := tagVocabularies[category]
	if len(vocab) == 0 {
		return ""
	}
	for _, tag := range tags {
		lower := strings.ToLower(strings.TrimSpace(tag))
		if lower == "" {
			continue
		}
		for _, keyword := range vocab {
			if strings.Contains(lower, keyword) {
				return keyword
			}
		}
	}
	return ""
}

// addWeight accumulates a weight on a category map, skipping empty values
// so absence keeps meaning weight zero.
func addWeight(m map[string]float64, value string, weight float64) {
	if value == "" {
		return
	}
	m[value] += weight
}
