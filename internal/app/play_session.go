package app

import (
	"sync"
	"time"

	"lesson-arcade-service/internal/domain"
)

// PlaySession tracks one learner's progress through a lesson. All methods are
// safe for concurrent use; evaluation runs off the connection's read loop.
type PlaySession struct {
	id        string
	lesson    domain.LessonProject
	startedAt time.Time
	now       func() time.Time

	mu            sync.Mutex
	levelID       string
	questionIndex int
	score         int
	streak        int
	maxStreak     int
	correct       int
	answered      int
	completed     []string
	evaluating    map[string]bool
	answers       map[string]domain.Evaluation
	// attempt changes on every reset so late evaluations can be told apart.
	attempt  int
	recorded bool
}

// NewPlaySession is exported for infrastructure layers that need to seed sessions.
func NewPlaySession(id string, lesson domain.LessonProject) *PlaySession {
	return newPlaySessionWithClock(id, lesson, time.Now)
}

// NewPlaySessionWithClock fixes the clock used for completion timestamps.
func NewPlaySessionWithClock(id string, lesson domain.LessonProject, now func() time.Time) *PlaySession {
	return newPlaySessionWithClock(id, lesson, now)
}

func newPlaySessionWithClock(id string, lesson domain.LessonProject, now func() time.Time) *PlaySession {
	s := &PlaySession{
		id:        id,
		lesson:    lesson,
		startedAt: now(),
		now:       now,
	}
	s.resetLocked()
	return s
}

func (s *PlaySession) ID() string { return s.id }

func (s *PlaySession) Lesson() domain.LessonProject { return s.lesson }

// SelectLevel moves the level pointer and restarts that level's questions.
func (s *PlaySession) SelectLevel(levelID string) error {
	if _, ok := s.lesson.Level(levelID); !ok {
		return domain.ErrLevelNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.levelID = levelID
	s.questionIndex = 0
	return nil
}

// CurrentQuestion returns the question the learner is on.
func (s *PlaySession) CurrentQuestion() (domain.QuizQuestion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentQuestionLocked()
}

func (s *PlaySession) currentQuestionLocked() (domain.QuizQuestion, error) {
	level, ok := s.lesson.Level(s.levelID)
	if !ok {
		return domain.QuizQuestion{}, domain.ErrLevelNotFound
	}
	if s.questionIndex >= len(level.Questions) {
		return domain.QuizQuestion{}, domain.ErrQuestionNotFound
	}
	return level.Questions[s.questionIndex], nil
}

// BeginEvaluation claims the in-flight slot for the current question and
// returns it with the attempt it belongs to. Each question is scored at most
// once per attempt.
func (s *PlaySession) BeginEvaluation(questionID string) (domain.QuizQuestion, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	level, ok := s.lesson.Level(s.levelID)
	if !ok {
		return domain.QuizQuestion{}, 0, domain.ErrLevelNotFound
	}
	index := -1
	for i := range level.Questions {
		if level.Questions[i].ID == questionID {
			index = i
			break
		}
	}
	switch {
	case index < 0:
		return domain.QuizQuestion{}, 0, domain.ErrQuestionNotFound
	case index != s.questionIndex:
		return domain.QuizQuestion{}, 0, domain.ErrNotCurrentQuestion
	case s.evaluating[questionID]:
		return domain.QuizQuestion{}, 0, domain.ErrEvaluationInFlight
	}
	if _, done := s.answers[questionID]; done {
		return domain.QuizQuestion{}, 0, domain.ErrAlreadyAnswered
	}
	s.evaluating[questionID] = true
	return level.Questions[index], s.attempt, nil
}

// AbortEvaluation releases the in-flight slot without scoring. It does
// nothing if the session was reset since the slot was claimed.
func (s *PlaySession) AbortEvaluation(questionID string, attempt int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if attempt == s.attempt {
		delete(s.evaluating, questionID)
	}
}

// ApplyEvaluation scores an evaluated answer, updates streak and counters,
// and releases the in-flight slot. It returns the points awarded, or
// domain.ErrStaleEvaluation when the session was reset in the meantime.
func (s *PlaySession) ApplyEvaluation(question domain.QuizQuestion, attempt int, eval domain.Evaluation) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if attempt != s.attempt {
		return 0, domain.ErrStaleEvaluation
	}
	delete(s.evaluating, question.ID)
	if _, done := s.answers[question.ID]; done {
		return 0, domain.ErrAlreadyAnswered
	}

	awarded := eval.Award(question.Worth())
	if awarded > 0 {
		s.score += awarded
	}
	s.answered++
	if eval.IsCorrect() {
		s.correct++
		s.streak++
		if s.streak > s.maxStreak {
			s.maxStreak = s.streak
		}
	} else {
		s.streak = 0
	}
	s.answers[question.ID] = eval
	return awarded, nil
}

// Advance moves to the next question. When the level's last question has been
// passed the level is marked completed and levelDone is true.
func (s *PlaySession) Advance() (levelDone bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	level, ok := s.lesson.Level(s.levelID)
	if !ok {
		return false, domain.ErrLevelNotFound
	}
	if s.questionIndex < len(level.Questions)-1 {
		s.questionIndex++
		return false, nil
	}
	s.questionIndex = len(level.Questions)
	s.completeLevelLocked(level.ID)
	return true, nil
}

// NextLevel returns the first level after the current one, if any.
func (s *PlaySession) NextLevel() (domain.LessonLevel, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, lvl := range s.lesson.Levels {
		if lvl.ID == s.levelID && i+1 < len(s.lesson.Levels) {
			return s.lesson.Levels[i+1], true
		}
	}
	return domain.LessonLevel{}, false
}

func (s *PlaySession) completeLevelLocked(levelID string) {
	for _, id := range s.completed {
		if id == levelID {
			return
		}
	}
	s.completed = append(s.completed, levelID)
}

// Finished reports whether every level has been completed.
func (s *PlaySession) Finished() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finishedLocked()
}

func (s *PlaySession) finishedLocked() bool {
	return len(s.lesson.Levels) > 0 && len(s.completed) == len(s.lesson.Levels)
}

// Accuracy is the rounded share of the lesson's questions answered
// correctly. Skipped questions count against it.
func (s *PlaySession) Accuracy() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accuracyLocked()
}

func (s *PlaySession) accuracyLocked() int {
	return accuracy(s.correct, s.lesson.QuestionCount())
}

func accuracy(correct, total int) int {
	if total == 0 {
		return 0
	}
	return (correct*200 + total) / (total * 2)
}

// Reset starts the lesson over ("play again").
func (s *PlaySession) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
}

func (s *PlaySession) resetLocked() {
	s.levelID = ""
	if len(s.lesson.Levels) > 0 {
		s.levelID = s.lesson.Levels[0].ID
	}
	s.questionIndex = 0
	s.score = 0
	s.streak = 0
	s.maxStreak = 0
	s.correct = 0
	s.answered = 0
	s.completed = nil
	s.evaluating = make(map[string]bool)
	s.answers = make(map[string]domain.Evaluation)
	s.attempt++
	s.recorded = false
}

// Entry builds the leaderboard entry for this attempt.
func (s *PlaySession) Entry(name string) domain.LeaderboardEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entryLocked(name)
}

func (s *PlaySession) entryLocked(name string) domain.LeaderboardEntry {
	return domain.LeaderboardEntry{
		Name:        domain.DisplayName(name),
		Score:       s.score,
		Accuracy:    s.accuracyLocked(),
		CompletedAt: s.now().UnixMilli(),
	}
}

// Complete closes a finished attempt and returns its leaderboard entry. An
// attempt can be completed once; Reset starts a new one.
func (s *PlaySession) Complete(name string) (domain.LeaderboardEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.finishedLocked() {
		return domain.LeaderboardEntry{}, domain.ErrCourseIncomplete
	}
	if s.recorded {
		return domain.LeaderboardEntry{}, domain.ErrAlreadyRecorded
	}
	s.recorded = true
	return s.entryLocked(name), nil
}

func (s *PlaySession) Snapshot() domain.SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	completed := make([]string, len(s.completed))
	copy(completed, s.completed)
	return domain.SessionSnapshot{
		SessionID:       s.id,
		LessonID:        s.lesson.ID,
		CurrentLevelID:  s.levelID,
		QuestionIndex:   s.questionIndex,
		Score:           s.score,
		Streak:          s.streak,
		MaxStreak:       s.maxStreak,
		Correct:         s.correct,
		Answered:        s.answered,
		Accuracy:        s.accuracyLocked(),
		CompletedLevels: completed,
		Finished:        s.finishedLocked(),
	}
}
