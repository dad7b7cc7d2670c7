package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	redis "github.com/redis/go-redis/v9"

	"github.com/BenhadineKaoutar/picorpixel/internal/config"
	"github.com/BenhadineKaoutar/picorpixel/internal/game"
	"github.com/BenhadineKaoutar/picorpixel/internal/msgcat"
	"github.com/BenhadineKaoutar/picorpixel/internal/store"
	"github.com/BenhadineKaoutar/picorpixel/pkg/gamedto"
)

const testSecret = "test-secret"

func newTestServer(t *testing.T) *Server {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(func() { mr.Close() })
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	kv := store.NewRedisFromClient(rdb)

	pool := game.NewImagePool(kv)
	cache := game.NewChallengeCache(kv, pool, 4, 48*time.Hour)
	sessions := game.NewSessionStore(kv, cache, 24*time.Hour)
	stats := game.NewStatsStore(kv)
	lb := game.NewLeaderboardAggregator(kv, stats)
	orchestrator := game.NewOrchestrator(cache, sessions, lb, stats)

	messages, err := msgcat.New("")
	if err != nil {
		t.Fatalf("msgcat.New: %v", err)
	}
	cfg := &config.AppConfig{
		JWTSecret:               testSecret,
		LeaderboardDefaultLimit: 10,
		LeaderboardMaxLimit:     100,
		RateLimitPerMinute:      6000,
		RateLimitBurst:          1000,
	}
	s := New(cfg, orchestrator, kv, messages)
	t.Cleanup(func() { s.limiter.close() })
	return s
}

func bearerToken(t *testing.T, userID, username string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":  userID,
		"username": username,
		"exp":      time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return "Bearer " + signed
}

func doJSON(t *testing.T, s *Server, method, path, auth string, body interface{}, out interface{}) int {
	t.Helper()
	var payload io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		payload = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, path, payload)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	resp, err := s.App().Test(req, 5000)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s response: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)
	var body map[string]string
	if code := doJSON(t, s, http.MethodGet, "/healthz", "", nil, &body); code != http.StatusOK {
		t.Fatalf("healthz status = %d", code)
	}
	if body["status"] != "ok" {
		t.Fatalf("healthz body = %+v", body)
	}
}

func TestGetDailyChallenge_PublicAndSanitized(t *testing.T) {
	s := newTestServer(t)
	var body map[string]json.RawMessage
	if code := doJSON(t, s, http.MethodGet, "/api/challenge/daily", "", nil, &body); code != http.StatusOK {
		t.Fatalf("daily challenge status = %d", code)
	}
	var challenge struct {
		ID     string           `json:"id"`
		Images []map[string]any `json:"images"`
	}
	if err := json.Unmarshal(body["challenge"], &challenge); err != nil {
		t.Fatalf("decode challenge: %v", err)
	}
	if challenge.ID == "" || len(challenge.Images) == 0 {
		t.Fatalf("challenge = %+v", challenge)
	}
	for _, img := range challenge.Images {
		if _, leaked := img["isAIGenerated"]; leaked {
			t.Fatalf("ground truth leaked in public challenge: %+v", img)
		}
		if _, leaked := img["explanation"]; leaked {
			t.Fatalf("explanation leaked before guessing: %+v", img)
		}
	}
}

func TestGameRoutes_RequireAuth(t *testing.T) {
	s := newTestServer(t)
	var errBody gamedto.ErrorResponse
	code := doJSON(t, s, http.MethodPost, "/api/game/start", "", map[string]string{}, &errBody)
	if code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated start status = %d", code)
	}
	if errBody.Error.Code != gamedto.CodeUnauthorized {
		t.Fatalf("error code = %q", errBody.Error.Code)
	}
}

func TestFullGameFlow(t *testing.T) {
	s := newTestServer(t)
	auth := bearerToken(t, "u1", "alice")

	var challengeResp gamedto.DailyChallengeResponse
	if code := doJSON(t, s, http.MethodGet, "/api/challenge/daily", "", nil, &challengeResp); code != http.StatusOK {
		t.Fatalf("daily challenge status = %d", code)
	}
	ch := challengeResp.Challenge

	var startResp gamedto.GameSessionResponse
	code := doJSON(t, s, http.MethodPost, "/api/game/start", auth, map[string]string{"challengeId": ch.ID}, &startResp)
	if code != http.StatusOK {
		t.Fatalf("start status = %d", code)
	}
	if startResp.Session.ChallengeID != ch.ID || startResp.Session.Completed {
		t.Fatalf("session = %+v", startResp.Session)
	}

	for _, img := range ch.Images {
		var guessResp gamedto.SubmitGuessResponse
		code := doJSON(t, s, http.MethodPost, "/api/game/guess", auth, map[string]interface{}{
			"challengeId": ch.ID,
			"imageId":     img.ID,
			"guess":       true,
		}, &guessResp)
		if code != http.StatusOK {
			t.Fatalf("guess %s status = %d", img.ID, code)
		}
		if guessResp.Type != gamedto.TypeSubmitGuess {
			t.Fatalf("guess response type = %q", guessResp.Type)
		}
	}

	var completeResp gamedto.CompleteGameResponse
	code = doJSON(t, s, http.MethodPost, "/api/game/complete", auth, map[string]string{"challengeId": ch.ID}, &completeResp)
	if code != http.StatusOK {
		t.Fatalf("complete status = %d", code)
	}
	result := completeResp.Result
	if result.TotalCount != len(ch.Images) || result.Rank != 1 || result.TotalPlayers != 1 {
		t.Fatalf("result = %+v", result)
	}
	if result.Message == "" {
		t.Fatalf("completion result carries no message")
	}

	// A repeated completion is a conflict, not a second score insert.
	var conflict gamedto.ErrorResponse
	code = doJSON(t, s, http.MethodPost, "/api/game/complete", auth, map[string]string{"challengeId": ch.ID}, &conflict)
	if code != http.StatusConflict {
		t.Fatalf("second complete status = %d, want 409", code)
	}
	if conflict.Error.Code != gamedto.CodeConflict {
		t.Fatalf("conflict code = %q", conflict.Error.Code)
	}

	var lbResp gamedto.LeaderboardResponse
	if code := doJSON(t, s, http.MethodGet, "/api/leaderboard?period=daily", "", nil, &lbResp); code != http.StatusOK {
		t.Fatalf("leaderboard status = %d", code)
	}
	if len(lbResp.Leaderboard) != 1 || lbResp.Leaderboard[0].UserID != "u1" {
		t.Fatalf("leaderboard = %+v", lbResp.Leaderboard)
	}
	if lbResp.Summary.TotalPlayersToday != 1 {
		t.Fatalf("summary = %+v", lbResp.Summary)
	}

	var statsResp gamedto.UserStatsResponse
	if code := doJSON(t, s, http.MethodGet, "/api/users/stats", auth, nil, &statsResp); code != http.StatusOK {
		t.Fatalf("stats status = %d", code)
	}
	if statsResp.Stats == nil || statsResp.Stats.TotalGamesPlayed != 1 {
		t.Fatalf("stats = %+v", statsResp.Stats)
	}
	if statsResp.CurrentRanking == nil || statsResp.CurrentRanking.Rank != 1 {
		t.Fatalf("ranking = %+v", statsResp.CurrentRanking)
	}
}

func TestSubmitGuess_Validation(t *testing.T) {
	s := newTestServer(t)
	auth := bearerToken(t, "u1", "alice")
	var errBody gamedto.ErrorResponse
	code := doJSON(t, s, http.MethodPost, "/api/game/guess", auth, map[string]string{"challengeId": "x"}, &errBody)
	if code != http.StatusBadRequest {
		t.Fatalf("incomplete guess status = %d", code)
	}
	if errBody.Error.Code != gamedto.CodeValidation {
		t.Fatalf("error code = %q", errBody.Error.Code)
	}
}

func TestGetLeaderboard_RejectsUnknownPeriod(t *testing.T) {
	s := newTestServer(t)
	var errBody gamedto.ErrorResponse
	if code := doJSON(t, s, http.MethodGet, "/api/leaderboard?period=hourly", "", nil, &errBody); code != http.StatusBadRequest {
		t.Fatalf("unknown period status = %d", code)
	}
}

func TestPrivacy_UpdateAndReadBack(t *testing.T) {
	s := newTestServer(t)
	auth := bearerToken(t, "u1", "alice")

	var resp gamedto.PrivacyResponse
	if code := doJSON(t, s, http.MethodGet, "/api/users/privacy", auth, nil, &resp); code != http.StatusOK {
		t.Fatalf("get privacy status = %d", code)
	}
	if !resp.Settings.AllowLeaderboard || !resp.Settings.ShareStats {
		t.Fatalf("default privacy = %+v", resp.Settings)
	}

	code := doJSON(t, s, http.MethodPut, "/api/users/privacy", auth, map[string]bool{"shareStats": false}, &resp)
	if code != http.StatusOK {
		t.Fatalf("put privacy status = %d", code)
	}
	if resp.Settings.ShareStats || !resp.Settings.AllowLeaderboard {
		t.Fatalf("updated privacy = %+v, want only shareStats flipped", resp.Settings)
	}

	if code := doJSON(t, s, http.MethodGet, "/api/users/privacy", auth, nil, &resp); code != http.StatusOK {
		t.Fatalf("get privacy status = %d", code)
	}
	if resp.Settings.ShareStats {
		t.Fatalf("privacy update not persisted: %+v", resp.Settings)
	}
}

func TestLeaderboard_AnonymizesOptedOutLeader(t *testing.T) {
	s := newTestServer(t)
	auth := bearerToken(t, "u1", "alice")

	var challengeResp gamedto.DailyChallengeResponse
	if code := doJSON(t, s, http.MethodGet, "/api/challenge/daily", "", nil, &challengeResp); code != http.StatusOK {
		t.Fatalf("daily challenge status = %d", code)
	}
	ch := challengeResp.Challenge
	if code := doJSON(t, s, http.MethodPost, "/api/game/start", auth, map[string]string{"challengeId": ch.ID}, nil); code != http.StatusOK {
		t.Fatalf("start status = %d", code)
	}
	if code := doJSON(t, s, http.MethodPost, "/api/game/complete", auth, map[string]string{"challengeId": ch.ID}, nil); code != http.StatusOK {
		t.Fatalf("complete status = %d", code)
	}
	if code := doJSON(t, s, http.MethodPut, "/api/users/privacy", auth, map[string]bool{"shareStats": false}, nil); code != http.StatusOK {
		t.Fatalf("put privacy status = %d", code)
	}

	var lbResp gamedto.LeaderboardResponse
	if code := doJSON(t, s, http.MethodGet, "/api/leaderboard", "", nil, &lbResp); code != http.StatusOK {
		t.Fatalf("leaderboard status = %d", code)
	}
	if len(lbResp.Leaderboard) != 1 {
		t.Fatalf("leaderboard = %+v", lbResp.Leaderboard)
	}
	if got := lbResp.Leaderboard[0].Username; got == "alice" {
		t.Fatalf("leader name %q not anonymized", got)
	}
	if lbResp.Summary.DailyLeader == "alice" {
		t.Fatalf("summary leader not anonymized: %q", lbResp.Summary.DailyLeader)
	}
}

func TestAuth_RejectsWrongSecret(t *testing.T) {
	s := newTestServer(t)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": "u1",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte("other-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	code := doJSON(t, s, http.MethodPost, "/api/game/start", fmt.Sprintf("Bearer %s", signed), map[string]string{}, nil)
	if code != http.StatusUnauthorized {
		t.Fatalf("forged token status = %d", code)
	}
}
