package game

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/BenhadineKaoutar/picorpixel/internal/store"
)

const (
	allTimeKey = "leaderboard:alltime"
	// Daily sets outlive the 7-day weekly window by a day of slack.
	dailyLeaderboardTTL = 8 * 24 * time.Hour
)

// AnonymousName replaces the display name of users who disallow name
// sharing. Their row stays in the board with its global rank.
const AnonymousName = "Anonymous Player"

// LeaderboardAggregator maintains one ranked set per day plus a persistent
// all-time set, and serves privacy-filtered reads. Privacy is enforced on
// read only; stored scores are never rewritten for an opt-out.
type LeaderboardAggregator struct {
	kv    store.KV
	stats *StatsStore
	now   func() time.Time
}

func NewLeaderboardAggregator(kv store.KV, stats *StatsStore) *LeaderboardAggregator {
	return &LeaderboardAggregator{kv: kv, stats: stats, now: time.Now}
}

func dailyKey(date string) string { return "leaderboard:" + date }

func member(userID, username string) string { return userID + ":" + username }

func splitMember(m string) (userID, username string) {
	parts := strings.SplitN(m, ":", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return m, m
}

// RecordScore inserts or overwrites the user's authoritative score in the
// day's ranked set and folds it into the all-time set. Completion is
// exactly-once upstream, so the all-time increment never double counts.
func (l *LeaderboardAggregator) RecordScore(ctx context.Context, date, userID, username string, score int) error {
	if date == "" || userID == "" {
		return ErrInvalidArgs
	}
	m := member(userID, username)
	if err := l.kv.ZAdd(ctx, dailyKey(date), m, float64(score)); err != nil {
		return fmt.Errorf("record daily score: %w", err)
	}
	if err := l.kv.Expire(ctx, dailyKey(date), dailyLeaderboardTTL); err != nil {
		return fmt.Errorf("expire daily leaderboard: %w", err)
	}
	if _, err := l.kv.ZIncrBy(ctx, allTimeKey, m, float64(score)); err != nil {
		return fmt.Errorf("record alltime score: %w", err)
	}
	return nil
}

// TopScores returns up to limit members of one day's set with their
// 1-based rank, highest score first. No privacy filtering.
func (l *LeaderboardAggregator) TopScores(ctx context.Context, date string, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	members, err := l.kv.ZRevRangeWithScores(ctx, dailyKey(date), 0, int64(limit)-1)
	if err != nil {
		return nil, fmt.Errorf("read leaderboard: %w", err)
	}
	entries := make([]LeaderboardEntry, 0, len(members))
	for i, m := range members {
		userID, username := splitMember(m.Member)
		entries = append(entries, LeaderboardEntry{
			UserID:   userID,
			Username: username,
			Score:    int(m.Score),
			Rank:     i + 1,
		})
	}
	return entries, nil
}

// DailyLeaderboard returns today's top entries after privacy filtering and
// stats enrichment. Filtered entries are skipped, not renumbered, so the
// remaining rank numbers are the global ranks.
func (l *LeaderboardAggregator) DailyLeaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	entries, err := l.TopScores(ctx, DateKey(l.now()), limit)
	if err != nil {
		return nil, err
	}
	return l.applyPrivacy(ctx, entries)
}

// WeeklyLeaderboard aggregates the last 7 daily sets: per user it sums
// scores and counts games, ranks by average score descending, then applies
// the privacy filter. O(7 x dailySetSize); fine at challenge scale.
func (l *LeaderboardAggregator) WeeklyLeaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	type acc struct {
		username string
		total    int
		games    int
	}
	byUser := map[string]*acc{}
	order := []string{}

	today := l.now()
	for i := 0; i < 7; i++ {
		date := DateKey(today.AddDate(0, 0, -i))
		members, err := l.kv.ZRevRangeWithScores(ctx, dailyKey(date), 0, -1)
		if err != nil {
			return nil, fmt.Errorf("read weekly leaderboard: %w", err)
		}
		for _, m := range members {
			userID, username := splitMember(m.Member)
			a, ok := byUser[userID]
			if !ok {
				a = &acc{username: username}
				byUser[userID] = a
				order = append(order, userID)
			}
			a.total += int(m.Score)
			a.games++
		}
	}

	entries := make([]LeaderboardEntry, 0, len(byUser))
	for _, userID := range order {
		a := byUser[userID]
		avg := math.Round(float64(a.total)/float64(a.games)*100) / 100
		entries = append(entries, LeaderboardEntry{
			UserID:       userID,
			Username:     a.username,
			Score:        a.total,
			GamesPlayed:  a.games,
			AverageScore: avg,
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].AverageScore > entries[j].AverageScore
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return l.applyPrivacy(ctx, entries)
}

// AllTimeLeaderboard reads the persistent all-time set, which accumulates
// every completed game's score per user.
func (l *LeaderboardAggregator) AllTimeLeaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	members, err := l.kv.ZRevRangeWithScores(ctx, allTimeKey, 0, int64(limit)-1)
	if err != nil {
		return nil, fmt.Errorf("read alltime leaderboard: %w", err)
	}
	entries := make([]LeaderboardEntry, 0, len(members))
	for i, m := range members {
		userID, username := splitMember(m.Member)
		entries = append(entries, LeaderboardEntry{
			UserID:   userID,
			Username: username,
			Score:    int(m.Score),
			Rank:     i + 1,
		})
	}
	return l.applyPrivacy(ctx, entries)
}

// UserRank is a point lookup against one day's ranked set. Returns nil
// when the user has no score recorded for that date.
func (l *LeaderboardAggregator) UserRank(ctx context.Context, date, userID, username string) (*UserRanking, error) {
	if date == "" || userID == "" {
		return nil, ErrInvalidArgs
	}
	key := dailyKey(date)
	m := member(userID, username)
	rank, ok, err := l.kv.ZRevRank(ctx, key, m)
	if err != nil {
		return nil, fmt.Errorf("read rank: %w", err)
	}
	if !ok {
		// Username may have changed since the score landed; fall back to a
		// scan keyed on the userID prefix.
		members, err := l.kv.ZRevRangeWithScores(ctx, key, 0, -1)
		if err != nil {
			return nil, fmt.Errorf("read rank: %w", err)
		}
		for i, cand := range members {
			id, _ := splitMember(cand.Member)
			if id == userID {
				rank, ok, m = int64(i), true, cand.Member
				break
			}
		}
		if !ok {
			return nil, nil
		}
	}
	score, _, err := l.kv.ZScore(ctx, key, m)
	if err != nil {
		return nil, fmt.Errorf("read score: %w", err)
	}
	total, err := l.kv.ZCard(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("count players: %w", err)
	}
	return &UserRanking{
		Rank:         int(rank) + 1,
		Score:        int(score),
		TotalPlayers: int(total),
	}, nil
}

// Summary computes the header block for leaderboard responses from today's
// full set. The leader's name respects their name-sharing setting.
func (l *LeaderboardAggregator) Summary(ctx context.Context) (*LeaderboardSummary, error) {
	date := DateKey(l.now())
	members, err := l.kv.ZRevRangeWithScores(ctx, dailyKey(date), 0, -1)
	if err != nil {
		return nil, fmt.Errorf("read summary: %w", err)
	}
	summary := &LeaderboardSummary{TotalPlayersToday: len(members)}
	if len(members) == 0 {
		return summary, nil
	}
	sum := 0.0
	for _, m := range members {
		sum += m.Score
	}
	summary.AverageScoreToday = math.Round(sum/float64(len(members))*100) / 100

	leaderID, leaderName := splitMember(members[0].Member)
	privacy, err := l.stats.Privacy(ctx, leaderID)
	if err != nil {
		return nil, err
	}
	if !privacy.ShareStats {
		leaderName = AnonymousName
	}
	summary.DailyLeader = leaderName
	return summary, nil
}

// applyPrivacy drops users with allowLeaderboard=false, anonymizes names
// for users with shareStats=false and enriches rows with stored stats.
func (l *LeaderboardAggregator) applyPrivacy(ctx context.Context, entries []LeaderboardEntry) ([]LeaderboardEntry, error) {
	filtered := make([]LeaderboardEntry, 0, len(entries))
	for _, e := range entries {
		privacy, err := l.stats.Privacy(ctx, e.UserID)
		if err != nil {
			return nil, err
		}
		if !privacy.AllowLeaderboard {
			continue
		}
		if !privacy.ShareStats {
			e.Username = AnonymousName
		}
		if stats, err := l.stats.Get(ctx, e.UserID); err == nil && stats != nil {
			if e.GamesPlayed == 0 {
				e.GamesPlayed = stats.TotalGamesPlayed
			}
			if e.AverageScore == 0 {
				e.AverageScore = stats.AverageScore
			}
		}
		filtered = append(filtered, e)
	}
	return filtered, nil
}
