package game

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/lib/pq"
)

var ErrDuplicateResult = errors.New("game result already archived")

// ArchivedResult is the durable record of one finalized session. The
// key-value store owns live state; the archive exists for history queries
// after session keys expire.
type ArchivedResult struct {
	ID           int64
	SessionID    string
	UserID       string
	Username     string
	ChallengeID  string
	Score        int
	CorrectCount int
	TotalCount   int
	Guesses      []ImageGuess
	StartedAt    time.Time
	CompletedAt  time.Time
}

// Archive persists finalized results. Implementations must treat a repeated
// insert for the same session as ErrDuplicateResult.
type Archive interface {
	InsertResult(ctx context.Context, res *ArchivedResult) (int64, error)
	RecentResults(ctx context.Context, userID string, limit int) ([]*ArchivedResult, error)
}

type pgArchive struct {
	db *sql.DB
}

// NewPostgresArchive opens the archive database and verifies connectivity.
func NewPostgresArchive(databaseURL string) (Archive, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &pgArchive{db: db}, nil
}

func (a *pgArchive) InsertResult(ctx context.Context, res *ArchivedResult) (int64, error) {
	if res == nil {
		return 0, fmt.Errorf("nil result payload")
	}
	guesses, err := json.Marshal(res.Guesses)
	if err != nil {
		return 0, fmt.Errorf("marshal guesses: %w", err)
	}

	const query = `
		INSERT INTO game_results (
			session_id,
			user_id,
			username,
			challenge_id,
			score,
			correct_count,
			total_count,
			guesses,
			started_at,
			completed_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb, $9, $10)
		ON CONFLICT (session_id) DO NOTHING
		RETURNING id`

	var id sql.NullInt64
	err = a.db.QueryRowContext(
		ctx,
		query,
		res.SessionID,
		res.UserID,
		res.Username,
		res.ChallengeID,
		res.Score,
		res.CorrectCount,
		res.TotalCount,
		guesses,
		res.StartedAt,
		res.CompletedAt,
	).Scan(&id)
	if err == sql.ErrNoRows || (err == nil && !id.Valid) {
		return 0, ErrDuplicateResult
	}
	if err != nil {
		return 0, fmt.Errorf("insert game result: %w", err)
	}
	return id.Int64, nil
}

func (a *pgArchive) RecentResults(ctx context.Context, userID string, limit int) ([]*ArchivedResult, error) {
	if limit <= 0 {
		limit = 10
	}
	const query = `
		SELECT
			id,
			session_id,
			user_id,
			username,
			challenge_id,
			score,
			correct_count,
			total_count,
			guesses,
			started_at,
			completed_at
		FROM game_results
		WHERE user_id = $1
		ORDER BY completed_at DESC
		LIMIT $2`

	rows, err := a.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("select game results: %w", err)
	}
	defer rows.Close()

	results := make([]*ArchivedResult, 0, limit)
	for rows.Next() {
		var (
			res         ArchivedResult
			guessesJSON []byte
		)
		if err := rows.Scan(
			&res.ID,
			&res.SessionID,
			&res.UserID,
			&res.Username,
			&res.ChallengeID,
			&res.Score,
			&res.CorrectCount,
			&res.TotalCount,
			&guessesJSON,
			&res.StartedAt,
			&res.CompletedAt,
		); err != nil {
			return nil, fmt.Errorf("scan game result: %w", err)
		}
		if err := json.Unmarshal(guessesJSON, &res.Guesses); err != nil {
			return nil, fmt.Errorf("unmarshal guesses: %w", err)
		}
		results = append(results, &res)
	}
	return results, rows.Err()
}

// memArchive is a development and test implementation used when no
// database is configured.
type memArchive struct {
	mu        sync.RWMutex
	nextID    int64
	bySession map[string]*ArchivedResult
	byUser    map[string][]*ArchivedResult
}

func NewMemoryArchive() Archive {
	return &memArchive{
		bySession: make(map[string]*ArchivedResult),
		byUser:    make(map[string][]*ArchivedResult),
	}
}

func (m *memArchive) InsertResult(ctx context.Context, res *ArchivedResult) (int64, error) {
	if res == nil {
		return 0, ErrDuplicateResult
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.bySession[res.SessionID]; exists {
		return 0, ErrDuplicateResult
	}
	m.nextID++
	cp := *res
	cp.ID = m.nextID
	m.bySession[res.SessionID] = &cp
	m.byUser[res.UserID] = append(m.byUser[res.UserID], &cp)
	return cp.ID, nil
}

func (m *memArchive) RecentResults(ctx context.Context, userID string, limit int) ([]*ArchivedResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := m.byUser[userID]
	items := make([]*ArchivedResult, 0, len(list))
	// Append order is completion order; latest last.
	for i := len(list) - 1; i >= 0; i-- {
		cp := *list[i]
		items = append(items, &cp)
		if limit > 0 && len(items) == limit {
			break
		}
	}
	return items, nil
}
