package app

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"lesson-arcade-service/internal/domain"
)

// SessionRepository abstracts how play sessions are held (in-memory, Redis, etc).
type SessionRepository interface {
	Create(sessionID string, lesson domain.LessonProject) *PlaySession
	Get(sessionID string) (*PlaySession, bool)
	Delete(sessionID string)
}

// Evaluator grades an answer; implementations must not fail.
type Evaluator interface {
	EvaluateAnswer(ctx context.Context, question domain.QuizQuestion, answer string) domain.Evaluation
}

// PlayService contains the play-mode use cases.
type PlayService struct {
	sessions    SessionRepository
	lessons     LessonRepository
	evaluator   Evaluator
	leaderboard *Leaderboard
}

func NewPlayService(sessions SessionRepository, lessons LessonRepository, evaluator Evaluator, leaderboard *Leaderboard) *PlayService {
	return &PlayService{
		sessions:    sessions,
		lessons:     lessons,
		evaluator:   evaluator,
		leaderboard: leaderboard,
	}
}

// Start opens a new play session on a stored lesson, positioned on its first level.
func (s *PlayService) Start(ctx context.Context, lessonID string) (*PlaySession, error) {
	lesson, err := s.lessons.GetLesson(ctx, lessonID)
	if err != nil {
		return nil, err
	}
	return s.sessions.Create(uuid.NewString(), lesson), nil
}

func (s *PlayService) Session(sessionID string) (*PlaySession, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

// SelectLevel moves a session to another level.
func (s *PlayService) SelectLevel(sessionID, levelID string) (domain.SessionSnapshot, error) {
	session, err := s.Session(sessionID)
	if err != nil {
		return domain.SessionSnapshot{}, err
	}
	if err := session.SelectLevel(levelID); err != nil {
		return domain.SessionSnapshot{}, err
	}
	return session.Snapshot(), nil
}

// SubmitAnswer evaluates an answer to the current question and applies it to
// the session. A question is evaluated once per attempt; a result that
// arrives after PlayAgain is dropped with domain.ErrStaleEvaluation.
func (s *PlayService) SubmitAnswer(ctx context.Context, sessionID, questionID, answer string) (domain.AnswerOutcome, error) {
	if strings.TrimSpace(answer) == "" {
		return domain.AnswerOutcome{}, domain.ErrEmptyAnswer
	}
	session, err := s.Session(sessionID)
	if err != nil {
		return domain.AnswerOutcome{}, err
	}

	question, attempt, err := session.BeginEvaluation(questionID)
	if err != nil {
		return domain.AnswerOutcome{}, err
	}

	eval := s.evaluator.EvaluateAnswer(ctx, question, answer)
	if ctx.Err() != nil {
		// The caller went away; nothing to apply the result to.
		session.AbortEvaluation(questionID, attempt)
		return domain.AnswerOutcome{}, ctx.Err()
	}

	awarded, err := session.ApplyEvaluation(question, attempt, eval)
	if err != nil {
		return domain.AnswerOutcome{}, err
	}
	return domain.AnswerOutcome{
		QuestionID: questionID,
		Evaluation: eval,
		Awarded:    awarded,
		Session:    session.Snapshot(),
	}, nil
}

// Advance moves a session to its next question and reports whether the
// current level was just completed.
func (s *PlayService) Advance(sessionID string) (domain.SessionSnapshot, bool, error) {
	session, err := s.Session(sessionID)
	if err != nil {
		return domain.SessionSnapshot{}, false, err
	}
	levelDone, err := session.Advance()
	if err != nil {
		return domain.SessionSnapshot{}, false, err
	}
	return session.Snapshot(), levelDone, nil
}

// Finish records a completed attempt on the lesson leaderboard, once, and
// returns the ranked list.
func (s *PlayService) Finish(ctx context.Context, sessionID, name string) ([]domain.LeaderboardEntry, error) {
	session, err := s.Session(sessionID)
	if err != nil {
		return nil, err
	}
	entry, err := session.Complete(name)
	if err != nil {
		return nil, err
	}
	return s.leaderboard.Record(ctx, session.Lesson().ID, entry), nil
}

// Leaderboard returns the ranked list for a lesson.
func (s *PlayService) Leaderboard(ctx context.Context, lessonID string) []domain.LeaderboardEntry {
	return s.leaderboard.Read(ctx, lessonID)
}

// PlayAgain resets a session's progress on the same lesson.
func (s *PlayService) PlayAgain(sessionID string) (domain.SessionSnapshot, error) {
	session, err := s.Session(sessionID)
	if err != nil {
		return domain.SessionSnapshot{}, err
	}
	session.Reset()
	return session.Snapshot(), nil
}

// Leave discards a session.
func (s *PlayService) Leave(sessionID string) {
	s.sessions.Delete(sessionID)
}
