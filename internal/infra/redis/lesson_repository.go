package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
	"lesson-arcade-service/internal/domain"
)

// LessonStore is a durable backing store for lessons (e.g. Postgres).
type LessonStore interface {
	LoadLesson(ctx context.Context, lessonID string) (domain.LessonProject, error)
	StoreLesson(ctx context.Context, lesson domain.LessonProject) error
}

// LessonRepository caches lessons in Redis as JSON and falls back to an
// optional store on cache miss.
// Lessons are stored as: SET lesson:{lessonID} {json} EX ttl
type LessonRepository struct {
	client *redis.Client
	store  LessonStore
	ttl    time.Duration
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand
}

// NewLessonRepository builds a repository. store may be nil, in which case
// Redis is the only copy and lessons vanish when the TTL runs out.
func NewLessonRepository(client *redis.Client, store LessonStore, ttl time.Duration) *LessonRepository {
	return &LessonRepository{
		client: client,
		store:  store,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *LessonRepository) SaveLesson(ctx context.Context, lesson domain.LessonProject) error {
	if r.store != nil {
		if err := r.store.StoreLesson(ctx, lesson); err != nil {
			return err
		}
	}
	if err := r.cache(ctx, lesson); err != nil {
		if r.store == nil {
			return err
		}
		// the durable copy is written; a cold cache only costs a reload
		log.Printf("cache lesson %s: %v", lesson.ID, err)
	}
	return nil
}

func (r *LessonRepository) GetLesson(ctx context.Context, lessonID string) (domain.LessonProject, error) {
	lesson, err := r.cached(ctx, lessonID)
	if err == nil {
		return lesson, nil
	}
	if r.store == nil {
		return domain.LessonProject{}, err
	}

	result, err, _ := r.sf.Do(lessonID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if lesson, err := r.cached(ctx, lessonID); err == nil {
			return lesson, nil
		}

		lesson, err := r.store.LoadLesson(ctx, lessonID)
		if err != nil {
			return domain.LessonProject{}, err
		}
		if err := r.cache(ctx, lesson); err != nil {
			log.Printf("cache lesson %s: %v", lessonID, err)
		}
		return lesson, nil
	})
	if err != nil {
		return domain.LessonProject{}, err
	}
	return result.(domain.LessonProject), nil
}

func (r *LessonRepository) cached(ctx context.Context, lessonID string) (domain.LessonProject, error) {
	raw, err := r.client.Get(ctx, r.key(lessonID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.LessonProject{}, domain.ErrLessonNotFound
		}
		return domain.LessonProject{}, err
	}
	var lesson domain.LessonProject
	if err := json.Unmarshal(raw, &lesson); err != nil {
		return domain.LessonProject{}, fmt.Errorf("unmarshal lesson: %w", err)
	}
	return lesson, nil
}

func (r *LessonRepository) cache(ctx context.Context, lesson domain.LessonProject) error {
	data, err := json.Marshal(lesson)
	if err != nil {
		return fmt.Errorf("marshal lesson: %w", err)
	}
	return r.client.Set(ctx, r.key(lesson.ID), data, r.ttlWithJitter()).Err()
}

func (r *LessonRepository) key(lessonID string) string {
	return "lesson:" + lessonID
}

func (r *LessonRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
