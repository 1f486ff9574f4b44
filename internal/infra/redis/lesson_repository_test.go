package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"lesson-arcade-service/internal/domain"
	"lesson-arcade-service/internal/infra/memory"
)

func TestLessonRepositoryCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := newClient(mr)

	store := &countingStore{
		LessonStore: memory.NewStaticLessonStore(map[string]domain.LessonProject{
			"lesson-1": sampleLesson(),
		}),
	}
	repo := NewLessonRepository(client, store, time.Minute)

	got, err := repo.GetLesson(context.Background(), "lesson-1")
	if err != nil {
		t.Fatalf("get lesson: %v", err)
	}
	if store.loads != 1 {
		t.Fatalf("expected store loaded once, got %d", store.loads)
	}
	if len(got.Levels) != 1 || got.Levels[0].Questions[0].ID != "q1" {
		t.Fatalf("unexpected lesson %+v", got)
	}
	if !mr.Exists("lesson:lesson-1") {
		t.Fatalf("expected lesson cached in redis")
	}

	// Second call should hit cache, store not incremented.
	_, _ = repo.GetLesson(context.Background(), "lesson-1")
	if store.loads != 1 {
		t.Fatalf("expected cache hit, store loads=%d", store.loads)
	}
}

func TestLessonRepositorySaveWithoutStore(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	repo := NewLessonRepository(newClient(mr), nil, time.Minute)
	if err := repo.SaveLesson(context.Background(), sampleLesson()); err != nil {
		t.Fatalf("save lesson: %v", err)
	}
	if ttl := mr.TTL("lesson:lesson-1"); ttl < time.Minute {
		t.Fatalf("expected ttl of at least a minute, got %s", ttl)
	}
	if _, err := repo.GetLesson(context.Background(), "lesson-1"); err != nil {
		t.Fatalf("get lesson: %v", err)
	}

	mr.FastForward(2 * time.Minute)
	if _, err := repo.GetLesson(context.Background(), "lesson-1"); !errors.Is(err, domain.ErrLessonNotFound) {
		t.Fatalf("expected expired lesson, got %v", err)
	}
}

type countingStore struct {
	LessonStore
	loads int
}

func TestLessonRepositoryReportsRedisFailures(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	repo := NewLessonRepository(newClient(mr), nil, time.Minute)
	mr.SetError("ERR injected failure")

	_, err = repo.GetLesson(context.Background(), "lesson-1")
	if err == nil || errors.Is(err, domain.ErrLessonNotFound) {
		t.Fatalf("expected redis error, got %v", err)
	}
}

func (s *countingStore) LoadLesson(ctx context.Context, lessonID string) (domain.LessonProject, error) {
	s.loads++
	return s.LessonStore.LoadLesson(ctx, lessonID)
}

func sampleLesson() domain.LessonProject {
	return domain.LessonProject{
		ID:         "lesson-1",
		VideoURL:   "https://www.youtube.com/watch?v=abc",
		Title:      "Photosynthesis",
		Audience:   domain.AudienceBeginner,
		Difficulty: domain.DifficultyEasy,
		Levels: []domain.LessonLevel{
			{
				ID:    "l1",
				Title: "Light",
				Questions: []domain.QuizQuestion{
					{ID: "q1", Type: domain.QuestionShortAnswer, Question: "What do plants absorb?", CorrectAnswer: "Light", Points: 10},
				},
			},
		},
	}
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}
