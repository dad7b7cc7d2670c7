package server

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/BenhadineKaoutar/picorpixel/internal/game"
	"github.com/BenhadineKaoutar/picorpixel/pkg/gamedto"
)

func (s *Server) badRequest(c *fiber.Ctx, msg string) error {
	if msg == "" {
		msg = s.messages.Get("error.validation")
	}
	return c.Status(fiber.StatusBadRequest).JSON(gamedto.ErrorResponse{
		Error: gamedto.DomainError{Code: gamedto.CodeValidation, Message: msg},
	})
}

func authedUser(c *fiber.Ctx) (userID, username string) {
	userID, _ = c.Locals("userId").(string)
	username, _ = c.Locals("username").(string)
	return userID, username
}

// GetDailyChallenge serves today's challenge with ground-truth labels
// stripped. Generation happens lazily on the first request of the day.
func (s *Server) GetDailyChallenge(c *fiber.Ctx) error {
	challenge, err := s.orchestrator.DailyChallenge(c.Context())
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(gamedto.DailyChallengeResponse{
		Type:      gamedto.TypeDailyChallenge,
		Challenge: toDTOChallenge(challenge),
	})
}

type startGameRequest struct {
	ChallengeID string `json:"challengeId"`
}

// StartGame creates or resumes the caller's session. Idempotent: repeating
// the call returns the existing session unchanged.
func (s *Server) StartGame(c *fiber.Ctx) error {
	var req startGameRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return s.badRequest(c, "")
		}
	}
	userID, username := authedUser(c)
	session, err := s.orchestrator.StartGameSession(c.Context(), userID, username, req.ChallengeID)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(gamedto.GameSessionResponse{
		Type:    gamedto.TypeGameSession,
		Session: toDTOSession(session),
	})
}

type submitGuessRequest struct {
	ChallengeID string `json:"challengeId"`
	ImageID     string `json:"imageId"`
	Guess       *bool  `json:"guess"`
}

// SubmitGuess records one classification and returns the verdict.
func (s *Server) SubmitGuess(c *fiber.Ctx) error {
	var req submitGuessRequest
	if err := c.BodyParser(&req); err != nil {
		return s.badRequest(c, "")
	}
	if req.ChallengeID == "" || req.ImageID == "" || req.Guess == nil {
		return s.badRequest(c, "")
	}
	userID, _ := authedUser(c)
	result, err := s.orchestrator.SubmitGuess(c.Context(), userID, req.ChallengeID, req.ImageID, *req.Guess)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(gamedto.SubmitGuessResponse{
		Type:        gamedto.TypeSubmitGuess,
		Correct:     result.Correct,
		Explanation: result.Explanation,
	})
}

type completeGameRequest struct {
	ChallengeID string `json:"challengeId"`
}

// CompleteGame finalizes the session. A second completion for the same
// session is reported as a conflict and never double-counts.
func (s *Server) CompleteGame(c *fiber.Ctx) error {
	var req completeGameRequest
	if err := c.BodyParser(&req); err != nil {
		return s.badRequest(c, "")
	}
	if req.ChallengeID == "" {
		return s.badRequest(c, "")
	}
	userID, username := authedUser(c)
	result, err := s.orchestrator.CompleteGame(c.Context(), userID, username, req.ChallengeID)
	if err != nil {
		return s.respondError(c, err)
	}
	if result == nil {
		return c.Status(fiber.StatusConflict).JSON(gamedto.ErrorResponse{
			Error: gamedto.DomainError{Code: gamedto.CodeConflict, Message: s.messages.Get("error.session_completed")},
		})
	}
	dto := toDTOResult(result)
	key := "result.summary"
	if result.TotalCount > 0 && result.CorrectCount == result.TotalCount {
		key = "result.perfect"
	}
	dto.Message = s.messages.Render(key, result)
	return c.JSON(gamedto.CompleteGameResponse{
		Type:   gamedto.TypeCompleteGame,
		Result: dto,
	})
}

// GetLeaderboard serves one ranked window after privacy filtering.
func (s *Server) GetLeaderboard(c *fiber.Ctx) error {
	period := c.Query("period", "daily")
	switch period {
	case "daily", "weekly", "alltime":
	default:
		return s.badRequest(c, "")
	}
	limit := c.QueryInt("limit", s.defaultLimit)
	if limit <= 0 {
		limit = s.defaultLimit
	}
	if limit > s.maxLimit {
		limit = s.maxLimit
	}
	entries, summary, err := s.orchestrator.Leaderboard(c.Context(), period, limit)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(buildLeaderboardResponse(entries, summary, period))
}

// GetUserStats serves the caller's aggregates and today's ranking; both
// are null for a user who has not completed a game.
func (s *Server) GetUserStats(c *fiber.Ctx) error {
	userID, username := authedUser(c)
	stats, ranking, err := s.orchestrator.UserStats(c.Context(), userID, username)
	if err != nil {
		return s.respondError(c, err)
	}
	resp := gamedto.UserStatsResponse{Type: gamedto.TypeUserStats}
	if stats != nil {
		resp.Stats = &gamedto.UserStats{
			TotalGamesPlayed: stats.TotalGamesPlayed,
			TotalScore:       stats.TotalScore,
			AverageScore:     stats.AverageScore,
			BestScore:        stats.BestScore,
			LastPlayedDate:   stats.LastPlayedDate,
		}
	}
	if ranking != nil {
		resp.CurrentRanking = &gamedto.UserRanking{
			Rank:         ranking.Rank,
			Score:        ranking.Score,
			TotalPlayers: ranking.TotalPlayers,
		}
	}
	return c.JSON(resp)
}

// GetPrivacy returns the caller's visibility flags.
func (s *Server) GetPrivacy(c *fiber.Ctx) error {
	userID, _ := authedUser(c)
	settings, err := s.orchestrator.Privacy(c.Context(), userID)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(gamedto.PrivacyResponse{
		Type:     gamedto.TypePrivacy,
		Settings: gamedto.PrivacySettings{AllowLeaderboard: settings.AllowLeaderboard, ShareStats: settings.ShareStats},
	})
}

type privacyRequest struct {
	AllowLeaderboard *bool `json:"allowLeaderboard"`
	ShareStats       *bool `json:"shareStats"`
}

// PutPrivacy updates the caller's visibility flags. Takes effect on the
// next leaderboard read.
func (s *Server) PutPrivacy(c *fiber.Ctx) error {
	var req privacyRequest
	if err := c.BodyParser(&req); err != nil {
		return s.badRequest(c, "")
	}
	userID, _ := authedUser(c)
	current, err := s.orchestrator.Privacy(c.Context(), userID)
	if err != nil {
		return s.respondError(c, err)
	}
	if req.AllowLeaderboard != nil {
		current.AllowLeaderboard = *req.AllowLeaderboard
	}
	if req.ShareStats != nil {
		current.ShareStats = *req.ShareStats
	}
	if err := s.orchestrator.SetPrivacy(c.Context(), userID, current); err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(gamedto.PrivacyResponse{
		Type:     gamedto.TypePrivacy,
		Settings: gamedto.PrivacySettings{AllowLeaderboard: current.AllowLeaderboard, ShareStats: current.ShareStats},
	})
}

// DTO converters

func toDTOChallenge(ch *game.PublicChallenge) gamedto.Challenge {
	images := make([]gamedto.ChallengeImage, 0, len(ch.Images))
	for _, img := range ch.Images {
		images = append(images, gamedto.ChallengeImage{ID: img.ID, URL: img.URL, Difficulty: img.Difficulty})
	}
	return gamedto.Challenge{ID: ch.ID, Date: ch.Date, Images: images, TotalImages: ch.TotalImages}
}

func toDTOSession(sess *game.GameSession) gamedto.Session {
	guesses := make([]gamedto.Guess, 0, len(sess.Guesses))
	for _, g := range sess.Guesses {
		guesses = append(guesses, gamedto.Guess{
			ImageID:   g.ImageID,
			Guess:     g.Guess,
			Correct:   g.Correct,
			Timestamp: g.Timestamp.Format(time.RFC3339),
		})
	}
	return gamedto.Session{
		ID:          sess.ID,
		ChallengeID: sess.ChallengeID,
		StartTime:   sess.StartTime.Format(time.RFC3339),
		Completed:   sess.Completed,
		Guesses:     guesses,
		Score:       sess.Score,
	}
}

func toDTOResult(res *game.GameResult) gamedto.GameResult {
	return gamedto.GameResult{
		Score:        res.Score,
		CorrectCount: res.CorrectCount,
		TotalCount:   res.TotalCount,
		Rank:         res.Rank,
		TotalPlayers: res.TotalPlayers,
	}
}

func buildLeaderboardResponse(entries []game.LeaderboardEntry, summary *game.LeaderboardSummary, period string) gamedto.LeaderboardResponse {
	rows := make([]gamedto.LeaderboardEntry, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, gamedto.LeaderboardEntry{
			UserID:       e.UserID,
			Username:     e.Username,
			Score:        e.Score,
			Rank:         e.Rank,
			GamesPlayed:  e.GamesPlayed,
			AverageScore: e.AverageScore,
		})
	}
	resp := gamedto.LeaderboardResponse{
		Type:        gamedto.TypeLeaderboard,
		Leaderboard: rows,
		Period:      period,
	}
	if summary != nil {
		resp.Summary = gamedto.LeaderboardSummary{
			DailyLeader:       summary.DailyLeader,
			TotalPlayersToday: summary.TotalPlayersToday,
			AverageScoreToday: summary.AverageScoreToday,
		}
	}
	return resp
}
