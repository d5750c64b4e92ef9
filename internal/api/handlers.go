// Discoveryd - Art Discovery Feed and Preference Engine
// Copyright 2026 Kaleidorium
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kaleidorium/discoveryd

// Package api provides the HTTP surface of the discovery service. Routing
// uses chi; per-viewer session state lives in an in-memory registry backed
// by the session store for recovery across restarts.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kaleidorium/discoveryd/internal/config"
	"github.com/kaleidorium/discoveryd/internal/discovery"
	"github.com/kaleidorium/discoveryd/internal/logging"
	"github.com/kaleidorium/discoveryd/internal/metrics"
	"github.com/kaleidorium/discoveryd/internal/session"
)

// Catalog is the artwork pool source.
type Catalog interface {
	List(ctx context.Context) ([]discovery.Candidate, error)
	Count(ctx context.Context) (int, error)
}

// ProfileStore is durable preference storage for identified viewers.
type ProfileStore interface {
	Get(ctx context.Context, viewerID string) (*discovery.Profile, error)
	PutAsync(viewerID string, profile *discovery.Profile)
}

// SessionStore recovers and persists discovery sessions and anonymous
// profiles.
type SessionStore interface {
	Restore(ctx context.Context, ownerID string) (*session.Record, error)
	LoadProfile(ctx context.Context, ownerID string) (*discovery.Profile, error)
	SaveProfile(ctx context.Context, ownerID string, profile *discovery.Profile) error
}

// SessionSaver schedules session writes.
type SessionSaver interface {
	Enqueue(rec session.Record)
	Flush(ctx context.Context, rec session.Record) error
}

// viewerIDHeader identifies an authenticated viewer. Requests without it
// run anonymously under a generated cookie identity.
const viewerIDHeader = "X-Viewer-ID"

// viewerCookie names the anonymous identity cookie.
const viewerCookie = "discoveryd_viewer"

// anonPrefix marks generated anonymous viewer ids.
const anonPrefix = "anon-"

// defaultFeedLimit caps the candidates returned per feed response.
const defaultFeedLimit = 20

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// Handler serves the discovery API.
type Handler struct {
	orch     *discovery.Orchestrator
	filter   *discovery.FilterEngine
	catalog  Catalog
	profiles ProfileStore
	sessions SessionStore
	saver    SessionSaver

	states  *stateRegistry
	limiter *viewerLimiter
	logger  zerolog.Logger
}

// NewHandler wires the API handler.
func NewHandler(cfg config.ServerConfig, orch *discovery.Orchestrator, filter *discovery.FilterEngine,
	catalog Catalog, profiles ProfileStore, sessions SessionStore, saver SessionSaver,
) *Handler {
	return &Handler{
		orch:     orch,
		filter:   filter,
		catalog:  catalog,
		profiles: profiles,
		sessions: sessions,
		saver:    saver,
		states:   newStateRegistry(time.Hour),
		limiter:  newViewerLimiter(cfg.RateLimitReqs, cfg.RateLimitBurst),
		logger:   logging.With().Str("component", "api").Logger(),
	}
}

// feedResponse is the wire shape of a feed or feedback reply.
type feedResponse struct {
	ViewerID   string                `json:"viewer_id"`
	Candidates []discovery.Candidate `json:"candidates"`
	Cursor     int                   `json:"cursor"`
	PoolSize   int                   `json:"pool_size"`
	Mode       string                `json:"mode,omitempty"`
	Refreshed  bool                  `json:"refreshed"`
}

// feedbackRequest is one feedback event from the client.
type feedbackRequest struct {
	CandidateID string `json:"candidate_id"`
	Action      string `json:"action"`
}

// filterResponse is the wire shape of a filter reply.
type filterResponse struct {
	Candidates []discovery.Candidate `json:"candidates"`
	Matched    bool                  `json:"matched"`
	Message    string                `json:"message,omitempty"`
}

// Feed returns the viewer's current discovery window, restoring or
// creating the session as needed.
func (h *Handler) Feed(w http.ResponseWriter, r *http.Request) {
	viewerID, identified := h.viewerIdentity(w, r)
	st := h.states.acquire(viewerID)

	st.mu.Lock()
	defer st.mu.Unlock()
	st.lastSeen = time.Now()

	if !st.loaded {
		if err := h.loadState(r.Context(), st, viewerID, identified); err != nil {
			h.logger.Error().Err(err).Str("viewer", viewerID).Msg("load session state")
			respondError(w, http.StatusServiceUnavailable, "catalog unavailable")
			return
		}
	}

	mode := ""
	refreshed := false
	switch {
	case len(st.pool) == 0 || st.cursor >= len(st.pool) || st.freshPool:
		// Fresh session, never-ranked pool or exhausted pool: rank from
		// the top.
		st.freshPool = false
		res := h.orch.Refresh(r.Context(), discovery.RefreshInput{
			Profile:    st.profile,
			Pool:       st.pool,
			Cursor:     st.cursor,
			Identified: identified,
		})
		st.profile = res.Profile
		st.pool = res.Pool
		st.cursor = res.Cursor
		mode = res.Mode.String()
		refreshed = true
		h.persist(viewerID, identified, st)

	case st.refreshHint:
		// A restored identified session serves its saved pool immediately;
		// the delegated re-rank of the unseen remainder runs behind it.
		st.refreshHint = false
		if st.guard.TryAcquire() {
			go h.backgroundRefresh(viewerID, identified, st)
		}
	}

	respondJSON(w, http.StatusOK, h.feedReply(viewerID, st, feedLimit(r), mode, refreshed))
}

// backgroundRefresh re-ranks a restored session off the request path. Only
// the remainder behind the cursor is reordered; everything the viewer can
// already see stays where it is, and the cursor does not move. The guard is
// already held; this goroutine owns its release.
func (h *Handler) backgroundRefresh(viewerID string, identified bool, st *viewerState) {
	defer st.guard.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	st.mu.Lock()
	defer st.mu.Unlock()

	if st.cursor >= len(st.pool) {
		return
	}

	head := make([]discovery.Candidate, st.cursor)
	copy(head, st.pool[:st.cursor])

	res := h.orch.Refresh(ctx, discovery.RefreshInput{
		Profile:    st.profile,
		Pool:       st.pool[st.cursor:],
		Cursor:     0,
		Identified: identified,
	})
	st.profile = res.Profile
	st.pool = append(head, res.Pool...)
	h.persist(viewerID, identified, st)
}

// Feedback applies one feedback event and re-ranks the viewer's pool.
// Malformed events are acknowledged with 204 and ignored; the feed must
// never break because a client sent garbage.
func (h *Handler) Feedback(w http.ResponseWriter, r *http.Request) {
	viewerID, identified := h.viewerIdentity(w, r)

	if !h.limiter.allow(viewerID) {
		respondError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	var req feedbackRequest
	if err := decodeBody(r, &req); err != nil {
		metrics.FeedbackRejectedTotal.WithLabelValues("malformed").Inc()
		h.logger.Debug().Err(err).Msg("malformed feedback ignored")
		w.WriteHeader(http.StatusNoContent)
		return
	}
	action, ok := discovery.ParseAction(req.Action)
	if !ok || req.CandidateID == "" {
		metrics.FeedbackRejectedTotal.WithLabelValues("malformed").Inc()
		w.WriteHeader(http.StatusNoContent)
		return
	}

	st := h.states.acquire(viewerID)

	// Single-flight: a refresh already running for this viewer wins and
	// this event is dropped rather than queued behind it.
	if !st.guard.TryAcquire() {
		st.mu.Lock()
		reply := h.feedReply(viewerID, st, feedLimit(r), "", false)
		st.mu.Unlock()
		respondJSON(w, http.StatusOK, reply)
		return
	}
	defer st.guard.Release()

	st.mu.Lock()
	defer st.mu.Unlock()
	st.lastSeen = time.Now()

	if !st.loaded {
		if err := h.loadState(r.Context(), st, viewerID, identified); err != nil {
			h.logger.Error().Err(err).Str("viewer", viewerID).Msg("load session state")
			respondError(w, http.StatusServiceUnavailable, "catalog unavailable")
			return
		}
	}

	res := h.orch.Refresh(r.Context(), discovery.RefreshInput{
		Profile: st.profile,
		Pool:    st.pool,
		Cursor:  st.cursor,
		Feedback: &discovery.Feedback{
			CandidateID: req.CandidateID,
			Action:      action,
			ViewerID:    viewerID,
		},
		Identified: identified,
	})
	st.profile = res.Profile
	st.pool = res.Pool
	st.cursor = res.Cursor
	st.freshPool = false
	st.refreshHint = false
	h.persist(viewerID, identified, st)

	respondJSON(w, http.StatusOK, h.feedReply(viewerID, st, feedLimit(r), res.Mode.String(), true))
}

// Filter narrows the viewer's pool by criteria. Filtering never mutates
// the session; the filtered set is a view.
func (h *Handler) Filter(w http.ResponseWriter, r *http.Request) {
	viewerID, identified := h.viewerIdentity(w, r)

	var criteria discovery.Criteria
	if err := decodeBody(r, &criteria); err != nil {
		respondError(w, http.StatusBadRequest, "invalid filter criteria")
		return
	}

	st := h.states.acquire(viewerID)
	st.mu.Lock()
	defer st.mu.Unlock()
	st.lastSeen = time.Now()

	if !st.loaded {
		if err := h.loadState(r.Context(), st, viewerID, identified); err != nil {
			h.logger.Error().Err(err).Str("viewer", viewerID).Msg("load session state")
			respondError(w, http.StatusServiceUnavailable, "catalog unavailable")
			return
		}
	}

	result := h.filter.Apply(r.Context(), st.pool, criteria)

	resp := filterResponse{
		Candidates: result.Pool,
		Matched:    result.Matched,
	}
	if !result.Matched {
		resp.Message = "No artworks matched your filters. Showing everything instead."
	}
	respondJSON(w, http.StatusOK, resp)
}

// Teardown persists the viewer's session immediately and evicts the
// in-memory state. Called when the client navigates away.
func (h *Handler) Teardown(w http.ResponseWriter, r *http.Request) {
	viewerID, identified := h.viewerIdentity(w, r)

	st := h.states.acquire(viewerID)
	st.mu.Lock()
	if st.loaded {
		rec := session.Record{
			Pool:    st.pool,
			Cursor:  st.cursor,
			OwnerID: viewerID,
		}
		if err := h.saver.Flush(r.Context(), rec); err != nil {
			h.logger.Warn().Err(err).Str("viewer", viewerID).Msg("teardown session save")
		}
		h.persistProfile(viewerID, identified, st.profile)
	}
	// A stuck guard at teardown means a Release was missed; clear it so a
	// returning viewer is not locked out.
	st.guard.ForceReset()
	st.mu.Unlock()

	h.states.remove(viewerID)
	w.WriteHeader(http.StatusNoContent)
}

// Prune evicts idle viewer states and rate limiter buckets. Run
// periodically by the supervisor's maintenance loop.
func (h *Handler) Prune() {
	dropped := h.states.prune()
	h.limiter.prune(time.Hour)
	if dropped > 0 {
		h.logger.Debug().Int("dropped", dropped).Msg("idle viewer states pruned")
	}
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HealthReady verifies the catalog is reachable.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if _, err := h.catalog.Count(ctx); err != nil {
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
			"error":  "catalog unreachable",
		})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// loadState restores the viewer's session, falling back to a fresh catalog
// fetch. Must be called with st.mu held.
func (h *Handler) loadState(ctx context.Context, st *viewerState, viewerID string, identified bool) error {
	if rec, err := h.sessions.Restore(ctx, viewerID); err == nil {
		st.pool = rec.Pool
		st.cursor = rec.Cursor
		st.refreshHint = identified
	} else if !errors.Is(err, session.ErrNotFound) {
		h.logger.Warn().Err(err).Str("viewer", viewerID).Msg("session restore failed, starting fresh")
	}

	st.profile = h.loadProfile(ctx, viewerID, identified)

	if len(st.pool) == 0 {
		pool, err := h.catalog.List(ctx)
		if err != nil {
			return err
		}
		st.pool = pool
		st.cursor = 0
		st.freshPool = true
	}

	st.loaded = true
	return nil
}

// loadProfile reads the durable profile for identified viewers and the
// local one for anonymous viewers. A missing or failing store yields a
// fresh profile; preference history is an enhancement, not a dependency.
func (h *Handler) loadProfile(ctx context.Context, viewerID string, identified bool) *discovery.Profile {
	var profile *discovery.Profile
	var err error
	if identified {
		profile, err = h.profiles.Get(ctx, viewerID)
	} else {
		profile, err = h.sessions.LoadProfile(ctx, viewerID)
	}
	if err != nil {
		h.logger.Warn().Err(err).Str("viewer", viewerID).Msg("profile load failed, starting fresh")
	}
	if profile == nil {
		profile = discovery.NewProfile()
	}
	return profile
}

// persist schedules the session record and profile writes. Must be called
// with st.mu held.
func (h *Handler) persist(viewerID string, identified bool, st *viewerState) {
	h.saver.Enqueue(session.Record{
		Pool:    st.pool,
		Cursor:  st.cursor,
		OwnerID: viewerID,
	})
	h.persistProfile(viewerID, identified, st.profile)
}

func (h *Handler) persistProfile(viewerID string, identified bool, profile *discovery.Profile) {
	if profile == nil {
		return
	}
	// The live profile keeps mutating on subsequent feedback while the
	// async writer marshals; it gets a snapshot, not the shared maps.
	profile = profile.Clone()
	if identified {
		h.profiles.PutAsync(viewerID, profile)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.sessions.SaveProfile(ctx, viewerID, profile); err != nil {
		h.logger.Warn().Err(err).Str("viewer", viewerID).Msg("anonymous profile save failed")
	}
}

// feedReply builds the response window from the cursor. Must be called
// with st.mu held.
func (h *Handler) feedReply(viewerID string, st *viewerState, limit int, mode string, refreshed bool) feedResponse {
	start := st.cursor
	if start > len(st.pool) {
		start = len(st.pool)
	}
	end := start + limit
	if end > len(st.pool) {
		end = len(st.pool)
	}
	window := make([]discovery.Candidate, end-start)
	copy(window, st.pool[start:end])

	return feedResponse{
		ViewerID:   viewerID,
		Candidates: window,
		Cursor:     st.cursor,
		PoolSize:   len(st.pool),
		Mode:       mode,
		Refreshed:  refreshed,
	}
}

// viewerIdentity resolves the request's viewer id. A header identifies a
// known viewer; otherwise an anonymous cookie identity is created on first
// contact.
func (h *Handler) viewerIdentity(w http.ResponseWriter, r *http.Request) (string, bool) {
	if id := r.Header.Get(viewerIDHeader); id != "" {
		return id, true
	}

	if c, err := r.Cookie(viewerCookie); err == nil && c.Value != "" {
		return c.Value, false
	}

	id := anonPrefix + uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     viewerCookie,
		Value:    id,
		Path:     "/",
		MaxAge:   int((30 * 24 * time.Hour).Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return id, false
}

// feedLimit reads the limit query parameter, bounded to a sane window.
func feedLimit(r *http.Request) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultFeedLimit
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return defaultFeedLimit
	}
	if n > 100 {
		return 100
	}
	return n
}

// decodeBody decodes a JSON request body with a size cap.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// respondJSON writes a JSON response.
func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Debug().Err(err).Msg("write response")
	}
}

// respondError writes a JSON error response.
func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}
