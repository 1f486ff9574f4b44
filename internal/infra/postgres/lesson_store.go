package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"lesson-arcade-service/internal/domain"
)

// LessonStore keeps lesson JSONB in Postgres.
type LessonStore struct {
	pool *pgxpool.Pool
}

func NewLessonStore(pool *pgxpool.Pool) *LessonStore {
	return &LessonStore{pool: pool}
}

func (s *LessonStore) LoadLesson(ctx context.Context, lessonID string) (domain.LessonProject, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM lessons WHERE id=$1`, lessonID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.LessonProject{}, domain.ErrLessonNotFound
	}
	if err != nil {
		return domain.LessonProject{}, fmt.Errorf("load lesson: %w", err)
	}
	var lesson domain.LessonProject
	if err := json.Unmarshal(raw, &lesson); err != nil {
		return domain.LessonProject{}, fmt.Errorf("unmarshal lesson: %w", err)
	}
	return lesson, nil
}

func (s *LessonStore) StoreLesson(ctx context.Context, lesson domain.LessonProject) error {
	data, err := json.Marshal(lesson)
	if err != nil {
		return fmt.Errorf("marshal lesson: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO lessons (id, video_url, data) VALUES ($1, $2, $3::jsonb)
		 ON CONFLICT (id) DO UPDATE SET video_url=EXCLUDED.video_url, data=EXCLUDED.data`,
		lesson.ID, lesson.VideoURL, string(data))
	if err != nil {
		return fmt.Errorf("store lesson: %w", err)
	}
	return nil
}
