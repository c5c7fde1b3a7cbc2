// Package web serves the read-only league dashboard as JSON.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/cors"

	"github.com/franz/gym-league/internal/league"
	"github.com/franz/gym-league/internal/store"
	"github.com/franz/gym-league/internal/util"
)

// Store is the read side of the data-access facade
type Store interface {
	ListGuilds(ctx context.Context) ([]*store.Guild, error)
	GetGuild(ctx context.Context, id string) (*store.Guild, error)
	GetLeaderboard(ctx context.Context, guildID string) ([]*store.LeaderboardEntry, error)
	GetTrainer(ctx context.Context, id string) (*store.Trainer, error)
	GetTrainerBadges(ctx context.Context, trainerID string) ([]*store.Badge, error)
}

var availableRoutes = []string{"/", "/gyms", "/trainer/{id}", "/api/guilds", "/api/leaderboard/{guildID}", "/health"}

// Server is the dashboard HTTP server
type Server struct {
	store   Store
	addr    string
	handler http.Handler
}

// NewServer builds the dashboard over the store, listening on host:port
func NewServer(s Store, host string, port int) *Server {
	srv := &Server{store: s, addr: net.JoinHostPort(host, strconv.Itoa(port))}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", srv.handleIndex)
	mux.HandleFunc("GET /api/guilds", srv.handleGuilds)
	mux.HandleFunc("GET /api/leaderboard/{guildID}", srv.handleLeaderboard)
	mux.HandleFunc("GET /trainer/{trainerID}", srv.handleTrainer)
	mux.HandleFunc("GET /gyms", srv.handleGyms)
	mux.HandleFunc("GET /health", srv.handleHealth)
	mux.HandleFunc("/", srv.handleNotFound)

	srv.handler = cors.Default().Handler(logRequests(mux))
	return srv
}

// Handler returns the CORS-wrapped router
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Addr returns the listen address
func (s *Server) Addr() string {
	return s.addr
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		util.InfoLog("Web dashboard running at http://%s", s.addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("web server failed: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		util.InfoLog("Shutting down web dashboard")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down web server: %w", err)
		}
		return nil
	}
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		util.DebugLog("%s %s (%s)", r.Method, r.URL.Path, time.Since(start).Round(time.Millisecond))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		util.WarnLog("Failed to encode response: %v", err)
	}
}

// writeError logs the cause and answers with a generic message only
func writeError(w http.ResponseWriter, r *http.Request, status int, msg string, cause error) {
	if cause != nil {
		util.ErrorLog("%s %s: %v", r.Method, r.URL.Path, cause)
	}
	writeJSON(w, status, map[string]any{"success": false, "error": msg})
}

// trainerView is a leaderboard row with its badges
type trainerView struct {
	*store.LeaderboardEntry
	Badges []*store.Badge `json:"badges"`
}

func (s *Server) leaderboardWithBadges(ctx context.Context, guildID string) ([]trainerView, error) {
	entries, err := s.store.GetLeaderboard(ctx, guildID)
	if err != nil {
		return nil, err
	}
	views := make([]trainerView, 0, len(entries))
	for _, e := range entries {
		badges, err := s.store.GetTrainerBadges(ctx, e.ID)
		if err != nil {
			return nil, err
		}
		if badges == nil {
			badges = []*store.Badge{}
		}
		views = append(views, trainerView{LeaderboardEntry: e, Badges: badges})
	}
	return views, nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	guildID := r.URL.Query().Get("guild")
	if guildID == "" {
		guilds, err := s.store.ListGuilds(r.Context())
		if err != nil {
			writeError(w, r, http.StatusInternalServerError, "Failed to load guild list", err)
			return
		}
		if guilds == nil {
			guilds = []*store.Guild{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"guilds": guilds})
		return
	}

	guild, err := s.store.GetGuild(r.Context(), guildID)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "Failed to load leaderboard", err)
		return
	}
	if guild == nil {
		writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "error": "Guild not found", "guild_id": guildID})
		return
	}
	board, err := s.leaderboardWithBadges(r.Context(), guildID)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "Failed to load leaderboard", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"guild":          guild,
		"leaderboard":    board,
		"total_trainers": len(board),
	})
}

func (s *Server) handleGuilds(w http.ResponseWriter, r *http.Request) {
	guilds, err := s.store.ListGuilds(r.Context())
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "Failed to fetch guild list", err)
		return
	}
	if guilds == nil {
		guilds = []*store.Guild{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "guilds": guilds})
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	board, err := s.leaderboardWithBadges(r.Context(), r.PathValue("guildID"))
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "Failed to fetch leaderboard data", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": board})
}

func (s *Server) handleTrainer(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("trainerID")
	trainer, err := s.store.GetTrainer(r.Context(), id)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "Failed to load trainer profile", err)
		return
	}
	if trainer == nil {
		writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "error": "Trainer not found", "trainer_id": id})
		return
	}

	badges, err := s.store.GetTrainerBadges(r.Context(), id)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "Failed to load trainer profile", err)
		return
	}
	types := make([]string, len(badges))
	for i, b := range badges {
		types[i] = b.GymType
	}
	if badges == nil {
		badges = []*store.Badge{}
	}
	progress := league.ProgressOf(types)
	writeJSON(w, http.StatusOK, map[string]any{
		"trainer":      trainer,
		"badges":       badges,
		"badge_count":  len(badges),
		"progress":     progress,
		"next_goal":    progress.NextGoal(),
		"achievements": progress.Achievements(),
	})
}

func (s *Server) handleGyms(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"gyms":       league.Gyms(),
		"elite_four": league.EliteFour(),
		"champion":   league.Champion(),
		"total_gyms": len(league.Gyms()),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]any{
		"error":            "Page not found",
		"path":             r.URL.Path,
		"method":           r.Method,
		"available_routes": availableRoutes,
	})
}
