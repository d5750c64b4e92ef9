// Discoveryd - Art Discovery Feed and Preference Engine
// Copyright 2026 Kaleidorium
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kaleidorium/discoveryd

/*
Package discovery implements the preference-weighted recommendation core:
the taste-profile data model, the affinity scorer, the refresh
orchestrator with its exhaustion state machine and delegated-ranking
fallback, the three-tier filter cascade, and the single-flight refresh
guard.

# Data flow

A feedback event (view, like, dislike, add) mutates the viewer's Profile
through Preferences, then the Orchestrator re-ranks the unseen remainder
of the candidate pool, locally through Scorer or through the external
Ranker collaborator for identified viewers. The updated pool is handed
back to the caller; session persistence happens outside this package.

# Consistency invariant

Category values are read exclusively through ResolveCategory, which
prefers the structured field and falls back to a fixed tag-keyword
vocabulary. Scoring and weight updates share this resolver; using any
other lookup path makes scores silently diverge from accumulated weights.

# Failure semantics

Nothing in this package surfaces collaborator failures to the viewer.
Delegated ranking falls back to the local scorer, external search falls
back to local substring matching, and filter criteria that match nothing
produce a typed no-match state rather than an error.
*/
package discovery
