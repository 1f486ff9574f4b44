package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"sync"

	"lesson-arcade-service/internal/domain"
)

const (
	// DefaultLeaderboardPrefix namespaces leaderboard keys in the key-value store.
	DefaultLeaderboardPrefix = "lessonarcade_lite_leaderboard_"
	// DefaultLeaderboardLimit is how many entries survive per lesson.
	DefaultLeaderboardLimit = 5
)

// KeyValueStore is the string-keyed persistence behind the leaderboard
// (in-memory, Redis, Postgres, SQLite).
type KeyValueStore interface {
	// Get returns ok=false when the key is absent.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
}

// Leaderboard keeps the best attempts per lesson, ranked by score and then
// recency.
type Leaderboard struct {
	kv     KeyValueStore
	prefix string
	limit  int
	mu     sync.Mutex
}

func NewLeaderboard(kv KeyValueStore, prefix string, limit int) *Leaderboard {
	if prefix == "" {
		prefix = DefaultLeaderboardPrefix
	}
	if limit <= 0 {
		limit = DefaultLeaderboardLimit
	}
	return &Leaderboard{kv: kv, prefix: prefix, limit: limit}
}

// Read returns the stored list for a lesson. Missing or unreadable data is
// treated as an empty leaderboard.
func (l *Leaderboard) Read(ctx context.Context, lessonID string) []domain.LeaderboardEntry {
	raw, ok, err := l.kv.Get(ctx, l.key(lessonID))
	if err != nil {
		log.Printf("leaderboard %s: read failed: %v", lessonID, err)
		return []domain.LeaderboardEntry{}
	}
	if !ok || raw == "" {
		return []domain.LeaderboardEntry{}
	}
	var entries []domain.LeaderboardEntry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		log.Printf("leaderboard %s: failed to parse stored entries: %v", lessonID, err)
		return []domain.LeaderboardEntry{}
	}
	if entries == nil {
		entries = []domain.LeaderboardEntry{}
	}
	return entries
}

// Record adds entry, re-ranks and truncates the list, then persists it. A
// failed write is logged and the ranked list is returned anyway.
func (l *Leaderboard) Record(ctx context.Context, lessonID string, entry domain.LeaderboardEntry) []domain.LeaderboardEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry.Name = domain.DisplayName(entry.Name)
	updated := RankEntries(append(l.Read(ctx, lessonID), entry), l.limit)

	if err := l.persist(ctx, lessonID, updated); err != nil {
		log.Printf("leaderboard %s: %v", lessonID, err)
	}
	return updated
}

func (l *Leaderboard) persist(ctx context.Context, lessonID string, entries []domain.LeaderboardEntry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("%w: marshal: %w", domain.ErrStorageFailure, err)
	}
	if err := l.kv.Set(ctx, l.key(lessonID), string(data)); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrStorageFailure, err)
	}
	return nil
}

func (l *Leaderboard) key(lessonID string) string {
	return l.prefix + lessonID
}

// RankEntries sorts by score descending, then completion time descending,
// and keeps at most limit entries. Entries equal on both keep their order.
func RankEntries(entries []domain.LeaderboardEntry, limit int) []domain.LeaderboardEntry {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].CompletedAt > entries[j].CompletedAt
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}
