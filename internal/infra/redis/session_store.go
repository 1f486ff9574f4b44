package redis

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"lesson-arcade-service/internal/app"
	"lesson-arcade-service/internal/domain"
)

// SessionStore is a Redis-aware implementation of app.SessionRepository.
// Notes:
//   - Play sessions live in a local map; each one is bound to the connection
//     that started it.
//   - Redis holds a liveness marker per session ({lessonID} as value) so other
//     instances and operators can see which lessons are being played.
type SessionStore struct {
	client   *redis.Client
	ttl      time.Duration
	mu       sync.RWMutex
	sessions map[string]*app.PlaySession
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{
		client:   client,
		ttl:      ttl,
		sessions: make(map[string]*app.PlaySession),
	}
}

func (s *SessionStore) Create(sessionID string, lesson domain.LessonProject) *app.PlaySession {
	s.mu.Lock()
	defer s.mu.Unlock()
	session := app.NewPlaySession(sessionID, lesson)
	s.sessions[sessionID] = session
	// best-effort liveness marker
	_ = s.client.Set(context.Background(), s.key(sessionID), lesson.ID, s.ttl).Err()
	return session
}

func (s *SessionStore) Get(sessionID string) (*app.PlaySession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	if ok && s.ttl > 0 {
		_ = s.client.Expire(context.Background(), s.key(sessionID), s.ttl).Err()
	}
	return session, ok
}

func (s *SessionStore) Delete(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return
	}
	delete(s.sessions, sessionID)
	_ = s.client.Del(context.Background(), s.key(sessionID)).Err()
}

func (s *SessionStore) key(sessionID string) string {
	return "lesson:session:" + sessionID
}
