package game

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/BenhadineKaoutar/picorpixel/internal/obslog"
)

// PublicImage is a challenge image with the ground-truth label and its
// explanation stripped; this is the only image shape handed to clients
// before they guess.
type PublicImage struct {
	ID         string `json:"id"`
	URL        string `json:"url"`
	Difficulty string `json:"difficulty,omitempty"`
}

// PublicChallenge is the client-facing view of a DailyChallenge.
type PublicChallenge struct {
	ID          string        `json:"id"`
	Date        string        `json:"date"`
	Images      []PublicImage `json:"images"`
	TotalImages int           `json:"totalImages"`
}

// Orchestrator composes the challenge cache, session store, scoring and
// leaderboard into the operations the API layer exposes.
type Orchestrator struct {
	cache       *ChallengeCache
	sessions    *SessionStore
	leaderboard *LeaderboardAggregator
	stats       *StatsStore
	archive     Archive
	now         func() time.Time
}

func NewOrchestrator(cache *ChallengeCache, sessions *SessionStore, leaderboard *LeaderboardAggregator, stats *StatsStore) *Orchestrator {
	return &Orchestrator{
		cache:       cache,
		sessions:    sessions,
		leaderboard: leaderboard,
		stats:       stats,
		now:         time.Now,
	}
}

// AttachArchive wires an optional durable archive for finalized results.
// Archival failures never fail a completion; they are logged and dropped.
func (o *Orchestrator) AttachArchive(a Archive) {
	if o != nil {
		o.archive = a
	}
}

// DailyChallenge returns today's challenge in its public form, generating
// it on the first request of the day.
func (o *Orchestrator) DailyChallenge(ctx context.Context) (*PublicChallenge, error) {
	ch, err := o.cache.GetOrCreate(ctx, DateKey(o.now()))
	if err != nil {
		return nil, err
	}
	return sanitize(ch), nil
}

// StartGameSession creates or resumes the caller's session for the
// challenge. An empty challengeID targets today's challenge.
func (o *Orchestrator) StartGameSession(ctx context.Context, userID, username, challengeID string) (*GameSession, error) {
	if challengeID == "" {
		ch, err := o.cache.GetOrCreate(ctx, DateKey(o.now()))
		if err != nil {
			return nil, err
		}
		challengeID = ch.ID
	}
	return o.sessions.Start(ctx, userID, challengeID, username)
}

// SubmitGuess records one classification. Leaderboard state is untouched
// until completion.
func (o *Orchestrator) SubmitGuess(ctx context.Context, userID, challengeID, imageID string, guess bool) (*GuessResult, error) {
	return o.sessions.SubmitGuess(ctx, userID, challengeID, imageID, guess)
}

// CompleteGame finalizes the session, records the score into today's and
// the all-time ranked sets, updates user aggregates and returns the result
// carrying the player's actual daily rank. A second completion returns
// (nil, nil) and leaves every store untouched.
func (o *Orchestrator) CompleteGame(ctx context.Context, userID, username, challengeID string) (*GameResult, error) {
	result, session, err := o.sessions.Complete(ctx, userID, challengeID)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}

	date := DateKey(o.now())
	if err := o.leaderboard.RecordScore(ctx, date, userID, username, result.Score); err != nil {
		return nil, err
	}
	if _, err := o.stats.RecordCompletion(ctx, userID, result.Score, date); err != nil {
		return nil, err
	}

	ranking, err := o.leaderboard.UserRank(ctx, date, userID, username)
	if err != nil {
		return nil, err
	}
	if ranking != nil {
		result.Rank = ranking.Rank
		result.TotalPlayers = ranking.TotalPlayers
	}

	o.archiveResult(ctx, session, result)
	return result, nil
}

func (o *Orchestrator) archiveResult(ctx context.Context, session *GameSession, result *GameResult) {
	if o.archive == nil || session == nil {
		return
	}
	completedAt := o.now()
	if session.CompletedAt != nil {
		completedAt = *session.CompletedAt
	}
	_, err := o.archive.InsertResult(ctx, &ArchivedResult{
		SessionID:    session.ID,
		UserID:       session.UserID,
		Username:     session.Username,
		ChallengeID:  session.ChallengeID,
		Score:        result.Score,
		CorrectCount: result.CorrectCount,
		TotalCount:   result.TotalCount,
		Guesses:      session.Guesses,
		StartedAt:    session.StartTime,
		CompletedAt:  completedAt,
	})
	if err != nil && !errors.Is(err, ErrDuplicateResult) {
		obslog.L().Error("result_archive_error",
			zap.String("session_id", session.ID),
			zap.String("user_id", session.UserID),
			zap.Error(err),
		)
	}
}

// Leaderboard serves one ranked window plus today's summary block.
func (o *Orchestrator) Leaderboard(ctx context.Context, period string, limit int) ([]LeaderboardEntry, *LeaderboardSummary, error) {
	var (
		entries []LeaderboardEntry
		err     error
	)
	switch period {
	case "weekly":
		entries, err = o.leaderboard.WeeklyLeaderboard(ctx, limit)
	case "alltime":
		entries, err = o.leaderboard.AllTimeLeaderboard(ctx, limit)
	default:
		entries, err = o.leaderboard.DailyLeaderboard(ctx, limit)
	}
	if err != nil {
		return nil, nil, err
	}
	summary, err := o.leaderboard.Summary(ctx)
	if err != nil {
		return nil, nil, err
	}
	return entries, summary, nil
}

// UserStats returns the caller's aggregates plus today's ranking; both may
// be nil for a user with no history.
func (o *Orchestrator) UserStats(ctx context.Context, userID, username string) (*UserStats, *UserRanking, error) {
	stats, err := o.stats.Get(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	ranking, err := o.leaderboard.UserRank(ctx, DateKey(o.now()), userID, username)
	if err != nil {
		return nil, nil, err
	}
	return stats, ranking, nil
}

// Privacy returns the caller's visibility flags.
func (o *Orchestrator) Privacy(ctx context.Context, userID string) (PrivacySettings, error) {
	return o.stats.Privacy(ctx, userID)
}

// SetPrivacy updates the caller's visibility flags. Takes effect on the
// next leaderboard read; stored scores are untouched.
func (o *Orchestrator) SetPrivacy(ctx context.Context, userID string, settings PrivacySettings) error {
	return o.stats.SetPrivacy(ctx, userID, settings)
}

func sanitize(ch *DailyChallenge) *PublicChallenge {
	images := make([]PublicImage, 0, len(ch.Images))
	for _, img := range ch.Images {
		images = append(images, PublicImage{ID: img.ID, URL: img.URL, Difficulty: img.Difficulty})
	}
	return &PublicChallenge{
		ID:          ch.ID,
		Date:        ch.Date,
		Images:      images,
		TotalImages: ch.TotalImages,
	}
}
