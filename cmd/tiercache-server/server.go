package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Sternrassler/tiercache/internal/profile"
	"github.com/Sternrassler/tiercache/pkg/cache"
	"github.com/Sternrassler/tiercache/pkg/metrics"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const requestTimeout = 30 * time.Second

// server exposes the profile cache over HTTP.
type server struct {
	cache  *cache.Manager[profile.Profile]
	redis  *redis.Client // nil when running without a summary source
	logger zerolog.Logger
}

type profileResponse struct {
	Entity  string          `json:"entity"`
	Source  cache.Source    `json:"source"`
	Profile profile.Profile `json:"profile"`
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthHandler)
	mux.HandleFunc("GET /ready", s.readyHandler)
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /stats", s.statsHandler)
	mux.HandleFunc("GET /profiles/{entity}", s.profileHandler)
	mux.HandleFunc("DELETE /profiles/{entity}", s.evictHandler)
	return mux
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

func (s *server) readyHandler(w http.ResponseWriter, r *http.Request) {
	if s.redis != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := s.redis.Ping(ctx).Err(); err != nil {
			http.Error(w, fmt.Sprintf("redis unavailable: %v", err), http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "READY")
}

func (s *server) statsHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.cache.Stats())
}

func (s *server) profileHandler(w http.ResponseWriter, r *http.Request) {
	entity := r.PathValue("entity")
	level := r.URL.Query().Get("detail")
	if level == "" {
		level = cache.LevelBasic
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	p, source, err := s.cache.Get(ctx, entity, level)
	switch {
	case errors.Is(err, cache.ErrInvalidDetailLevel):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case err != nil:
		s.logger.Error().
			Err(err).
			Str("entity", entity).
			Str("level", level).
			Msg("Profile lookup failed")
		http.Error(w, fmt.Sprintf("profile lookup failed: %v", err), http.StatusBadGateway)
		return
	}

	s.logger.Debug().
		Str("entity", entity).
		Str("level", level).
		Str("source", string(source)).
		Msg("Served profile")

	w.Header().Set("X-Cache-Source", string(source))
	s.writeJSON(w, http.StatusOK, profileResponse{Entity: entity, Source: source, Profile: p})
}

func (s *server) evictHandler(w http.ResponseWriter, r *http.Request) {
	if !s.cache.Evict(r.PathValue("entity")) {
		http.Error(w, "not cached", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to write response")
	}
}
