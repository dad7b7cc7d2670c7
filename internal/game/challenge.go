package game

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/BenhadineKaoutar/picorpixel/internal/obslog"
	"github.com/BenhadineKaoutar/picorpixel/internal/store"
)

// ChallengeCache produces and caches one DailyChallenge per calendar date.
// Creation races are settled with a conditional set-if-absent on the
// challenge key itself: exactly one concurrent first-caller wins the write
// and every other caller reads the winner's challenge back.
type ChallengeCache struct {
	kv         store.KV
	pool       *ImagePool
	imageCount int
	ttl        time.Duration
}

// NewChallengeCache wires the cache. ttl must outlive the calendar day by
// at least 24h so clients in skewed timezones still resolve yesterday's
// challenge around midnight.
func NewChallengeCache(kv store.KV, pool *ImagePool, imageCount int, ttl time.Duration) *ChallengeCache {
	if imageCount <= 0 {
		imageCount = 8
	}
	if ttl < 24*time.Hour {
		ttl = 48 * time.Hour
	}
	return &ChallengeCache{kv: kv, pool: pool, imageCount: imageCount, ttl: ttl}
}

func challengeKey(date string) string { return "challenge:" + date }

// ChallengeIDForDate is the deterministic id of a generated daily
// challenge. Concurrent generators therefore agree on the id, and clients
// can hand it back on guess/complete calls.
func ChallengeIDForDate(date string) string { return "daily-" + date }

// dateFromChallengeID inverts ChallengeIDForDate; curated ids pass through
// unchanged and resolve against their own storage key.
func dateFromChallengeID(id string) string {
	if len(id) > 6 && id[:6] == "daily-" {
		return id[6:]
	}
	return id
}

// GetOrCreate returns the challenge for date, generating and storing it on
// the first request of the day. Every caller on the same date observes the
// same challenge.
func (c *ChallengeCache) GetOrCreate(ctx context.Context, date string) (*DailyChallenge, error) {
	if date == "" {
		return nil, ErrInvalidArgs
	}
	existing, err := c.load(ctx, date)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	candidate, err := c.generate(ctx, date)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(candidate)
	if err != nil {
		return nil, fmt.Errorf("encode challenge: %w", err)
	}

	won, err := c.kv.SetNX(ctx, challengeKey(date), raw, c.ttl)
	if err != nil {
		return nil, fmt.Errorf("store challenge: %w", err)
	}
	if !won {
		// Another request generated the day's challenge first; use theirs.
		winner, err := c.load(ctx, date)
		if err != nil {
			return nil, err
		}
		if winner != nil {
			return winner, nil
		}
		// Winner's key already expired; reclaim it, still conditionally, so
		// the single-winner guarantee holds even on this path.
		won, err = c.kv.SetNX(ctx, challengeKey(date), raw, c.ttl)
		if err != nil {
			return nil, fmt.Errorf("store challenge: %w", err)
		}
		if !won {
			winner, err = c.load(ctx, date)
			if err != nil {
				return nil, err
			}
			if winner != nil {
				return winner, nil
			}
			return nil, fmt.Errorf("challenge %s: creation contended and key absent", date)
		}
		return candidate, nil
	}

	obslog.L().Info("challenge_generated",
		zap.String("challenge_id", candidate.ID),
		zap.String("date", date),
		zap.Int("images", candidate.TotalImages),
	)
	return candidate, nil
}

// CreateForID stores an explicitly curated challenge under id, replacing
// whatever is cached there. Same TTL contract as generated challenges.
func (c *ChallengeCache) CreateForID(ctx context.Context, id string, images []GameImage) (*DailyChallenge, error) {
	if id == "" || len(images) == 0 {
		return nil, ErrInvalidArgs
	}
	ch := &DailyChallenge{
		ID:          id,
		Date:        DateKey(time.Now()),
		Images:      append([]GameImage(nil), images...),
		TotalImages: len(images),
		CreatedAt:   time.Now(),
	}
	raw, err := json.Marshal(ch)
	if err != nil {
		return nil, fmt.Errorf("encode challenge: %w", err)
	}
	if err := c.kv.Set(ctx, challengeKey(id), raw, c.ttl); err != nil {
		return nil, fmt.Errorf("store challenge: %w", err)
	}
	obslog.L().Info("challenge_curated", zap.String("challenge_id", ch.ID), zap.String("key", id))
	return ch, nil
}

// Get returns the cached challenge for date, or nil when absent.
func (c *ChallengeCache) Get(ctx context.Context, date string) (*DailyChallenge, error) {
	return c.load(ctx, date)
}

// GetByID resolves a challenge by its public id, for both generated daily
// and curated challenges. Returns nil when absent or expired.
func (c *ChallengeCache) GetByID(ctx context.Context, challengeID string) (*DailyChallenge, error) {
	if challengeID == "" {
		return nil, ErrInvalidArgs
	}
	return c.load(ctx, dateFromChallengeID(challengeID))
}

func (c *ChallengeCache) load(ctx context.Context, date string) (*DailyChallenge, error) {
	raw, err := c.kv.Get(ctx, challengeKey(date))
	if err != nil {
		return nil, fmt.Errorf("load challenge: %w", err)
	}
	if raw == nil {
		return nil, nil
	}
	var ch DailyChallenge
	if err := json.Unmarshal(raw, &ch); err != nil {
		return nil, fmt.Errorf("decode challenge: %w", err)
	}
	return &ch, nil
}

func (c *ChallengeCache) generate(ctx context.Context, date string) (*DailyChallenge, error) {
	images, err := c.pool.Images(ctx)
	if err != nil {
		return nil, err
	}
	if len(images) == 0 {
		images = Placeholders(c.imageCount)
	}
	selected := selectShuffled(images, c.imageCount)
	return &DailyChallenge{
		ID:          ChallengeIDForDate(date),
		Date:        date,
		Images:      selected,
		TotalImages: len(selected),
		CreatedAt:   time.Now(),
	}, nil
}

// selectShuffled picks up to n images under a uniform random permutation.
func selectShuffled(pool []GameImage, n int) []GameImage {
	shuffled := append([]GameImage(nil), pool...)
	rand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	if n > 0 && len(shuffled) > n {
		shuffled = shuffled[:n]
	}
	return shuffled
}
