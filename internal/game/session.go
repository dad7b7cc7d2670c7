package game

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BenhadineKaoutar/picorpixel/internal/obslog"
	"github.com/BenhadineKaoutar/picorpixel/internal/store"
)

// SessionStore tracks per-(user, challenge) game sessions. The storage key
// is deterministic, so session creation is naturally idempotent, and the
// completed flag only ever transitions false -> true under a compare-and-set.
type SessionStore struct {
	kv    store.KV
	cache *ChallengeCache
	ttl   time.Duration
}

func NewSessionStore(kv store.KV, cache *ChallengeCache, ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SessionStore{kv: kv, cache: cache, ttl: ttl}
}

func sessionKey(userID, challengeID string) string {
	return "session:" + userID + ":" + challengeID
}

// Start returns the session for (userID, challengeID), creating it on first
// call. A repeated call returns the existing session unchanged: startTime
// and accumulated guesses are never reset.
func (s *SessionStore) Start(ctx context.Context, userID, challengeID, username string) (*GameSession, error) {
	if userID == "" || challengeID == "" {
		return nil, ErrInvalidArgs
	}
	existing, err := s.load(ctx, userID, challengeID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	session := &GameSession{
		ID:          uuid.NewString(),
		UserID:      userID,
		Username:    username,
		ChallengeID: challengeID,
		StartTime:   time.Now(),
		Completed:   false,
		Guesses:     []ImageGuess{},
	}
	raw, err := json.Marshal(session)
	if err != nil {
		return nil, fmt.Errorf("encode session: %w", err)
	}
	won, err := s.kv.SetNX(ctx, sessionKey(userID, challengeID), raw, s.ttl)
	if err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}
	if !won {
		// Concurrent first start; the winner's session is authoritative.
		winner, err := s.load(ctx, userID, challengeID)
		if err != nil {
			return nil, err
		}
		if winner != nil {
			return winner, nil
		}
		return nil, ErrSessionNotFound
	}

	obslog.L().Info("session_start",
		zap.String("session_id", session.ID),
		zap.String("user_id", userID),
		zap.String("challenge_id", challengeID),
	)
	return session, nil
}

// SubmitGuess resolves the image's ground truth from the cached challenge,
// records the guess and returns the verdict. A repeated guess for the same
// image returns the recorded verdict without appending a second entry.
// Completed sessions reject further guesses.
func (s *SessionStore) SubmitGuess(ctx context.Context, userID, challengeID, imageID string, guess bool) (*GuessResult, error) {
	if userID == "" || challengeID == "" || imageID == "" {
		return nil, ErrInvalidArgs
	}
	challenge, err := s.cache.GetByID(ctx, challengeID)
	if err != nil {
		return nil, err
	}
	if challenge == nil {
		return nil, ErrChallengeNotFound
	}
	var image *GameImage
	for i := range challenge.Images {
		if challenge.Images[i].ID == imageID {
			image = &challenge.Images[i]
			break
		}
	}
	if image == nil {
		return nil, ErrImageNotFound
	}

	correct := guess == image.IsAIGenerated
	entry := ImageGuess{ImageID: imageID, Guess: guess, Correct: correct, Timestamp: time.Now()}

	var result GuessResult
	apply := func(old []byte) ([]byte, error) {
		if old == nil {
			return nil, ErrSessionNotFound
		}
		var cur GameSession
		if err := json.Unmarshal(old, &cur); err != nil {
			return nil, fmt.Errorf("decode session: %w", err)
		}
		if cur.Completed {
			return nil, ErrSessionCompleted
		}
		if prev := cur.GuessByImage(imageID); prev != nil {
			result = GuessResult{Correct: prev.Correct, Explanation: image.Explanation}
			return old, nil
		}
		cur.Guesses = append(cur.Guesses, entry)
		result = GuessResult{Correct: correct, Explanation: image.Explanation}
		return json.Marshal(&cur)
	}
	err = s.kv.Update(ctx, sessionKey(userID, challengeID), s.ttl, apply)
	if errors.Is(err, store.ErrConflict) {
		// A concurrent write to the same session landed first; re-read once.
		err = s.kv.Update(ctx, sessionKey(userID, challengeID), s.ttl, apply)
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Complete finalizes the session and returns its result. Returns nil when
// no session exists or it was already completed, so a double completion is
// an idempotent no-op and never double-inserts a leaderboard entry.
// The false -> true transition of the completed flag happens under a CAS:
// of two racing completions exactly one receives a non-nil result.
func (s *SessionStore) Complete(ctx context.Context, userID, challengeID string) (*GameResult, *GameSession, error) {
	if userID == "" || challengeID == "" {
		return nil, nil, ErrInvalidArgs
	}

	var (
		result  *GameResult
		session *GameSession
	)
	err := s.kv.Update(ctx, sessionKey(userID, challengeID), s.ttl, func(old []byte) ([]byte, error) {
		if old == nil {
			return nil, ErrSessionNotFound
		}
		var cur GameSession
		if err := json.Unmarshal(old, &cur); err != nil {
			return nil, fmt.Errorf("decode session: %w", err)
		}
		if cur.Completed {
			return nil, ErrSessionCompleted
		}
		summary := Score(cur.Guesses)
		now := time.Now()
		cur.Completed = true
		cur.CompletedAt = &now
		cur.Score = &summary.Score

		result = &GameResult{
			Score:        summary.Score,
			CorrectCount: summary.CorrectCount,
			TotalCount:   summary.TotalCount,
		}
		session = &cur
		return json.Marshal(&cur)
	})
	if errors.Is(err, ErrSessionNotFound) || errors.Is(err, ErrSessionCompleted) {
		return nil, nil, nil
	}
	if errors.Is(err, store.ErrConflict) {
		// Lost the race against a concurrent completion or guess. Re-read:
		// if the winner completed the session this call is the no-op side.
		cur, loadErr := s.load(ctx, userID, challengeID)
		if loadErr != nil {
			return nil, nil, loadErr
		}
		if cur == nil || cur.Completed {
			return nil, nil, nil
		}
		return s.Complete(ctx, userID, challengeID)
	}
	if err != nil {
		return nil, nil, err
	}

	obslog.L().Info("session_complete",
		zap.String("session_id", session.ID),
		zap.String("user_id", userID),
		zap.String("challenge_id", challengeID),
		zap.Int("score", result.Score),
		zap.Int("guesses", result.TotalCount),
	)
	return result, session, nil
}

// Get returns the stored session, or nil when absent.
func (s *SessionStore) Get(ctx context.Context, userID, challengeID string) (*GameSession, error) {
	return s.load(ctx, userID, challengeID)
}

func (s *SessionStore) load(ctx context.Context, userID, challengeID string) (*GameSession, error) {
	raw, err := s.kv.Get(ctx, sessionKey(userID, challengeID))
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if raw == nil {
		return nil, nil
	}
	var session GameSession
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &session, nil
}
