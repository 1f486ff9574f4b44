package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"lesson-arcade-service/internal/domain"
)

// LessonStore is a durable backing store for lessons (e.g. Postgres).
type LessonStore interface {
	LoadLesson(ctx context.Context, lessonID string) (domain.LessonProject, error)
	StoreLesson(ctx context.Context, lesson domain.LessonProject) error
}

// LessonRepository keeps lessons in process with a TTL, writing through to
// and reading through from an optional backing store.
type LessonRepository struct {
	store LessonStore
	ttl   time.Duration
	clock func() time.Time
	sf    singleflight.Group
	rnd   *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedLesson
}

type cachedLesson struct {
	lesson    domain.LessonProject
	expiresAt time.Time
}

// NewLessonRepository builds a repository. store may be nil; ttl <= 0 keeps
// lessons for the life of the process.
func NewLessonRepository(store LessonStore, ttl time.Duration) *LessonRepository {
	return &LessonRepository{
		store: store,
		ttl:   ttl,
		clock: time.Now,
		rnd:   rand.New(rand.NewSource(time.Now().UnixNano())),
		cache: make(map[string]cachedLesson),
	}
}

func (r *LessonRepository) SaveLesson(ctx context.Context, lesson domain.LessonProject) error {
	if r.store != nil {
		if err := r.store.StoreLesson(ctx, lesson); err != nil {
			return err
		}
	}
	r.put(lesson, r.clock())
	return nil
}

func (r *LessonRepository) GetLesson(ctx context.Context, lessonID string) (domain.LessonProject, error) {
	if lesson, ok := r.lookup(lessonID, r.clock()); ok {
		return lesson, nil
	}
	if r.store == nil {
		return domain.LessonProject{}, domain.ErrLessonNotFound
	}

	result, err, _ := r.sf.Do(lessonID, func() (interface{}, error) {
		now := r.clock()
		if lesson, ok := r.lookup(lessonID, now); ok {
			return lesson, nil
		}

		lesson, err := r.store.LoadLesson(ctx, lessonID)
		if err != nil {
			return domain.LessonProject{}, err
		}
		r.put(lesson, now)
		return lesson, nil
	})
	if err != nil {
		return domain.LessonProject{}, err
	}
	return result.(domain.LessonProject), nil
}

func (r *LessonRepository) lookup(lessonID string, now time.Time) (domain.LessonProject, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.cache[lessonID]
	if !ok || (!entry.expiresAt.IsZero() && !entry.expiresAt.After(now)) {
		return domain.LessonProject{}, false
	}
	return entry.lesson, true
}

func (r *LessonRepository) put(lesson domain.LessonProject, now time.Time) {
	var expiresAt time.Time
	if ttl := r.ttlWithJitter(); ttl > 0 {
		expiresAt = now.Add(ttl)
	}
	r.mu.Lock()
	r.cache[lesson.ID] = cachedLesson{lesson: lesson, expiresAt: expiresAt}
	r.mu.Unlock()
}

func (r *LessonRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// StaticLessonStore is a simple store backed by an in-memory map (useful for tests/demos).
type StaticLessonStore struct {
	mu      sync.RWMutex
	lessons map[string]domain.LessonProject
}

func NewStaticLessonStore(lessons map[string]domain.LessonProject) *StaticLessonStore {
	if lessons == nil {
		lessons = make(map[string]domain.LessonProject)
	}
	return &StaticLessonStore{lessons: lessons}
}

func (s *StaticLessonStore) LoadLesson(_ context.Context, lessonID string) (domain.LessonProject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if lesson, ok := s.lessons[lessonID]; ok {
		return lesson, nil
	}
	return domain.LessonProject{}, domain.ErrLessonNotFound
}

func (s *StaticLessonStore) StoreLesson(_ context.Context, lesson domain.LessonProject) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lessons[lesson.ID] = lesson
	return nil
}
