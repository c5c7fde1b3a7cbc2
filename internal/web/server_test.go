package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/franz/gym-league/internal/store"
)

func setupServer(t *testing.T) (*Server, *store.Store) {
	t.Helper()
	s, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "gym.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	require.NoError(t, s.AddGuild(ctx, "g1", "Pallet"))
	require.NoError(t, s.AddTrainer(ctx, "t1", "g1", "ash", "Ash"))
	require.NoError(t, s.AddTrainer(ctx, "t2", "g1", "misty", ""))
	_, err = s.AwardBadge(ctx, &store.Badge{TrainerID: "t2", GymType: "water", GymName: "Water Gym"})
	require.NoError(t, err)

	return NewServer(s, "localhost", 0), s
}

func get(t *testing.T, h http.Handler, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body), rr.Body.String())
	return rr, body
}

func TestHealth(t *testing.T) {
	srv, _ := setupServer(t)
	rr, body := get(t, srv.Handler(), "/health")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.Equal(t, "healthy", body["status"])
}

func TestIndex(t *testing.T) {
	srv, _ := setupServer(t)

	rr, body := get(t, srv.Handler(), "/")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, body["guilds"], 1)

	rr, body = get(t, srv.Handler(), "/?guild=g1")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.EqualValues(t, 2, body["total_trainers"])

	rr, _ = get(t, srv.Handler(), "/?guild=nope")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestLeaderboardAPI(t *testing.T) {
	srv, _ := setupServer(t)
	rr, body := get(t, srv.Handler(), "/api/leaderboard/g1")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, true, body["success"])

	data, ok := body["data"].([]any)
	require.True(t, ok)
	require.Len(t, data, 2)
	first := data[0].(map[string]any)
	assert.Equal(t, "t2", first["id"])
	assert.EqualValues(t, 1, first["badge_count"])
	assert.Len(t, first["badges"], 1)
	second := data[1].(map[string]any)
	assert.Equal(t, []any{}, second["badges"])
}

func TestGuildsAPI(t *testing.T) {
	srv, _ := setupServer(t)
	rr, body := get(t, srv.Handler(), "/api/guilds")
	require.Equal(t, http.StatusOK, rr.Code)
	guilds := body["guilds"].([]any)
	require.Len(t, guilds, 1)
	assert.Equal(t, "Pallet", guilds[0].(map[string]any)["name"])
}

func TestTrainerProfile(t *testing.T) {
	srv, _ := setupServer(t)

	rr, body := get(t, srv.Handler(), "/trainer/t2")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.EqualValues(t, 1, body["badge_count"])
	trainer := body["trainer"].(map[string]any)
	assert.Equal(t, "misty", trainer["username"])
	assert.EqualValues(t, 1, trainer["total_badges"])
	assert.Equal(t, "Earn 7 more gym badges to challenge the Elite Four", body["next_goal"])

	rr, body = get(t, srv.Handler(), "/trainer/ghost")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "Trainer not found", body["error"])
}

func TestGyms(t *testing.T) {
	srv, _ := setupServer(t)
	rr, body := get(t, srv.Handler(), "/gyms")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.EqualValues(t, 18, body["total_gyms"])
	assert.Len(t, body["elite_four"], 4)
}

func TestNotFound(t *testing.T) {
	srv, _ := setupServer(t)
	rr, body := get(t, srv.Handler(), "/nowhere")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "/nowhere", body["path"])
}

func TestCORS(t *testing.T) {
	srv, _ := setupServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://example.com")
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}

type brokenStore struct{ Store }

func (brokenStore) GetLeaderboard(context.Context, string) ([]*store.LeaderboardEntry, error) {
	return nil, errors.New("SQL logic error: no such table: trainers")
}

func TestErrorsAreGeneric(t *testing.T) {
	srv := NewServer(brokenStore{}, "localhost", 0)
	rr, body := get(t, srv.Handler(), "/api/leaderboard/g1")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "Failed to fetch leaderboard data", body["error"])
	assert.NotContains(t, rr.Body.String(), "no such table")
}
