package game

import (
	"errors"
	"time"
)

var (
	ErrChallengeNotFound = errors.New("challenge not found")
	ErrImageNotFound     = errors.New("image not found in challenge")
	ErrSessionNotFound   = errors.New("game session not found")
	ErrSessionCompleted  = errors.New("game session already completed")
	ErrInvalidArgs       = errors.New("invalid arguments")
)

// GameImage is one image of a daily challenge. IsAIGenerated is the ground
// truth label and must never reach the client before a guess is recorded.
type GameImage struct {
	ID            string `json:"id"`
	URL           string `json:"url"`
	IsAIGenerated bool   `json:"isAIGenerated"`
	Difficulty    string `json:"difficulty,omitempty"`
	Source        string `json:"source,omitempty"`
	Explanation   string `json:"explanation,omitempty"`
}

// DailyChallenge is the fixed image set for one calendar date. Immutable
// once stored; keyed by the server-local date.
type DailyChallenge struct {
	ID          string      `json:"id"`
	Date        string      `json:"date"`
	Images      []GameImage `json:"images"`
	TotalImages int         `json:"totalImages"`
	CreatedAt   time.Time   `json:"createdAt"`
}

// ImageGuess records one classification. Append-only: once stored it is
// never edited or removed.
type ImageGuess struct {
	ImageID   string    `json:"imageId"`
	Guess     bool      `json:"guess"`
	Correct   bool      `json:"correct"`
	Timestamp time.Time `json:"timestamp"`
}

// GameSession is one player's attempt at one challenge. Exactly one session
// exists per (userID, challengeID); the storage key is deterministic.
type GameSession struct {
	ID          string       `json:"id"`
	UserID      string       `json:"userId"`
	Username    string       `json:"username"`
	ChallengeID string       `json:"challengeId"`
	StartTime   time.Time    `json:"startTime"`
	Completed   bool         `json:"completed"`
	CompletedAt *time.Time   `json:"completedAt,omitempty"`
	Guesses     []ImageGuess `json:"guesses"`
	Score       *int         `json:"score,omitempty"`
}

// GuessByImage returns the recorded guess for imageID, if any.
func (s *GameSession) GuessByImage(imageID string) *ImageGuess {
	for i := range s.Guesses {
		if s.Guesses[i].ImageID == imageID {
			return &s.Guesses[i]
		}
	}
	return nil
}

// GuessResult is the outcome of a single submitted guess.
type GuessResult struct {
	Correct     bool   `json:"correct"`
	Explanation string `json:"explanation,omitempty"`
}

// GameResult summarizes a completed session.
type GameResult struct {
	Score        int `json:"score"`
	CorrectCount int `json:"correctCount"`
	TotalCount   int `json:"totalCount"`
	Rank         int `json:"rank"`
	TotalPlayers int `json:"totalPlayers"`
}

// LeaderboardEntry is a derived row: ranked-set position enriched with
// user stats. Rank is the 1-based global rank before privacy filtering.
type LeaderboardEntry struct {
	UserID       string  `json:"userId"`
	Username     string  `json:"username"`
	Score        int     `json:"score"`
	Rank         int     `json:"rank"`
	GamesPlayed  int     `json:"gamesPlayed"`
	AverageScore float64 `json:"averageScore"`
}

// LeaderboardSummary is the header block of a leaderboard response.
type LeaderboardSummary struct {
	DailyLeader       string  `json:"dailyLeader"`
	TotalPlayersToday int     `json:"totalPlayersToday"`
	AverageScoreToday float64 `json:"averageScoreToday"`
}

// UserStats aggregates a user's completions across all challenges.
type UserStats struct {
	UserID           string  `json:"userId"`
	TotalGamesPlayed int     `json:"totalGamesPlayed"`
	TotalScore       int     `json:"totalScore"`
	AverageScore     float64 `json:"averageScore"`
	BestScore        int     `json:"bestScore"`
	LastPlayedDate   string  `json:"lastPlayedDate,omitempty"`
}

// UserRanking is a point lookup against one day's ranked set.
type UserRanking struct {
	Rank         int `json:"rank"`
	Score        int `json:"score"`
	TotalPlayers int `json:"totalPlayers"`
}

// PrivacySettings are per-user opt-outs, enforced at read time.
// Historical scores remain stored regardless.
type PrivacySettings struct {
	AllowLeaderboard bool `json:"allowLeaderboard"`
	ShareStats       bool `json:"shareStats"`
}

// DateKey formats t as the server-local calendar date key.
func DateKey(t time.Time) string {
	return t.Format("2006-01-02")
}
