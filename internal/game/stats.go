package game

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"github.com/BenhadineKaoutar/picorpixel/internal/store"
)

// StatsStore keeps per-user aggregates and privacy settings in hashes
// without TTL. Counters go through atomic increments so concurrent
// completions from different challenges never lose an update.
type StatsStore struct {
	kv store.KV
}

func NewStatsStore(kv store.KV) *StatsStore {
	return &StatsStore{kv: kv}
}

func statsKey(userID string) string   { return "user:stats:" + userID }
func privacyKey(userID string) string { return "user:privacy:" + userID }

// RecordCompletion folds one finished game into the user's aggregates.
func (s *StatsStore) RecordCompletion(ctx context.Context, userID string, score int, date string) (*UserStats, error) {
	if userID == "" {
		return nil, ErrInvalidArgs
	}
	key := statsKey(userID)
	games, err := s.kv.HIncrBy(ctx, key, "totalGamesPlayed", 1)
	if err != nil {
		return nil, fmt.Errorf("update stats: %w", err)
	}
	total, err := s.kv.HIncrBy(ctx, key, "totalScore", int64(score))
	if err != nil {
		return nil, fmt.Errorf("update stats: %w", err)
	}

	avg := float64(0)
	if games > 0 {
		avg = math.Round(float64(total)/float64(games)*100) / 100
	}
	fields := map[string]interface{}{
		"averageScore":   strconv.FormatFloat(avg, 'f', -1, 64),
		"lastPlayedDate": date,
	}

	existing, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	best := score
	if existing != nil && existing.BestScore > best {
		best = existing.BestScore
	}
	fields["bestScore"] = strconv.Itoa(best)

	if err := s.kv.HSet(ctx, key, fields); err != nil {
		return nil, fmt.Errorf("update stats: %w", err)
	}
	return &UserStats{
		UserID:           userID,
		TotalGamesPlayed: int(games),
		TotalScore:       int(total),
		AverageScore:     avg,
		BestScore:        best,
		LastPlayedDate:   date,
	}, nil
}

// Get returns the user's aggregates, or nil when the user has no history.
func (s *StatsStore) Get(ctx context.Context, userID string) (*UserStats, error) {
	if userID == "" {
		return nil, ErrInvalidArgs
	}
	fields, err := s.kv.HGetAll(ctx, statsKey(userID))
	if err != nil {
		return nil, fmt.Errorf("load stats: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	stats := &UserStats{UserID: userID}
	stats.TotalGamesPlayed, _ = strconv.Atoi(fields["totalGamesPlayed"])
	stats.TotalScore, _ = strconv.Atoi(fields["totalScore"])
	stats.AverageScore, _ = strconv.ParseFloat(fields["averageScore"], 64)
	stats.BestScore, _ = strconv.Atoi(fields["bestScore"])
	stats.LastPlayedDate = fields["lastPlayedDate"]
	return stats, nil
}

// Privacy returns the user's opt-out flags. Users without stored settings
// default to fully visible.
func (s *StatsStore) Privacy(ctx context.Context, userID string) (PrivacySettings, error) {
	settings := PrivacySettings{AllowLeaderboard: true, ShareStats: true}
	if userID == "" {
		return settings, ErrInvalidArgs
	}
	fields, err := s.kv.HGetAll(ctx, privacyKey(userID))
	if err != nil {
		return settings, fmt.Errorf("load privacy: %w", err)
	}
	if v, ok := fields["allowLeaderboard"]; ok {
		settings.AllowLeaderboard = v == "true"
	}
	if v, ok := fields["shareStats"]; ok {
		settings.ShareStats = v == "true"
	}
	return settings, nil
}

// SetPrivacy stores the user's opt-out flags.
func (s *StatsStore) SetPrivacy(ctx context.Context, userID string, settings PrivacySettings) error {
	if userID == "" {
		return ErrInvalidArgs
	}
	return s.kv.HSet(ctx, privacyKey(userID), map[string]interface{}{
		"allowLeaderboard": strconv.FormatBool(settings.AllowLeaderboard),
		"shareStats":       strconv.FormatBool(settings.ShareStats),
	})
}
