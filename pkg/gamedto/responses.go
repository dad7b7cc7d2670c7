package gamedto

// Response type discriminators. Every successful API payload carries one so
// clients can route frames from both the HTTP and the WebSocket surface.
const (
	TypeDailyChallenge = "daily-challenge"
	TypeGameSession    = "game-session"
	TypeSubmitGuess    = "submit-guess"
	TypeCompleteGame   = "complete-game"
	TypeLeaderboard    = "leaderboard"
	TypeUserStats      = "user-stats"
	TypePrivacy        = "privacy-settings"
)

type ChallengeImage struct {
	ID         string `json:"id"`
	URL        string `json:"url"`
	Difficulty string `json:"difficulty,omitempty"`
}

type Challenge struct {
	ID          string           `json:"id"`
	Date        string           `json:"date"`
	Images      []ChallengeImage `json:"images"`
	TotalImages int              `json:"totalImages"`
}

type DailyChallengeResponse struct {
	Type      string    `json:"type"`
	Challenge Challenge `json:"challenge"`
}

type Guess struct {
	ImageID   string `json:"imageId"`
	Guess     bool   `json:"guess"`
	Correct   bool   `json:"correct"`
	Timestamp string `json:"timestamp"`
}

type Session struct {
	ID          string  `json:"id"`
	ChallengeID string  `json:"challengeId"`
	StartTime   string  `json:"startTime"`
	Completed   bool    `json:"completed"`
	Guesses     []Guess `json:"guesses"`
	Score       *int    `json:"score,omitempty"`
}

type GameSessionResponse struct {
	Type    string  `json:"type"`
	Session Session `json:"session"`
}

type SubmitGuessResponse struct {
	Type        string `json:"type"`
	Correct     bool   `json:"correct"`
	Explanation string `json:"explanation,omitempty"`
}

type GameResult struct {
	Score        int    `json:"score"`
	CorrectCount int    `json:"correctCount"`
	TotalCount   int    `json:"totalCount"`
	Rank         int    `json:"rank"`
	TotalPlayers int    `json:"totalPlayers"`
	Message      string `json:"message,omitempty"`
}

type CompleteGameResponse struct {
	Type   string     `json:"type"`
	Result GameResult `json:"result"`
}

type LeaderboardEntry struct {
	UserID       string  `json:"userId"`
	Username     string  `json:"username"`
	Score        int     `json:"score"`
	Rank         int     `json:"rank"`
	GamesPlayed  int     `json:"gamesPlayed"`
	AverageScore float64 `json:"averageScore"`
}

type LeaderboardSummary struct {
	DailyLeader       string  `json:"dailyLeader"`
	TotalPlayersToday int     `json:"totalPlayersToday"`
	AverageScoreToday float64 `json:"averageScoreToday"`
}

type LeaderboardResponse struct {
	Type        string             `json:"type"`
	Leaderboard []LeaderboardEntry `json:"leaderboard"`
	Period      string             `json:"period"`
	Summary     LeaderboardSummary `json:"summary"`
}

type UserStats struct {
	TotalGamesPlayed int     `json:"totalGamesPlayed"`
	TotalScore       int     `json:"totalScore"`
	AverageScore     float64 `json:"averageScore"`
	BestScore        int     `json:"bestScore"`
	LastPlayedDate   string  `json:"lastPlayedDate,omitempty"`
}

type UserRanking struct {
	Rank         int `json:"rank"`
	Score        int `json:"score"`
	TotalPlayers int `json:"totalPlayers"`
}

type UserStatsResponse struct {
	Type           string       `json:"type"`
	Stats          *UserStats   `json:"stats"`
	CurrentRanking *UserRanking `json:"currentRanking"`
}

type PrivacySettings struct {
	AllowLeaderboard bool `json:"allowLeaderboard"`
	ShareStats       bool `json:"shareStats"`
}

type PrivacyResponse struct {
	Type     string          `json:"type"`
	Settings PrivacySettings `json:"settings"`
}
