package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"lesson-arcade-service/internal/app"
	"lesson-arcade-service/internal/domain"
	"lesson-arcade-service/internal/infra/memory"
)

func TestPlayThroughAndFinish(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(staticEvaluator{eval: domain.Evaluation{Verdict: domain.VerdictCorrect, Score: 100}})

	session, err := service.Start(ctx, "lesson-1")
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	outcome, err := service.SubmitAnswer(ctx, session.ID(), "q1", "4")
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if outcome.Awarded != 10 || outcome.Session.Score != 10 || outcome.Session.Streak != 1 {
		t.Fatalf("unexpected outcome %+v", outcome)
	}

	_, levelDone, err := service.Advance(session.ID())
	if err != nil || !levelDone {
		t.Fatalf("expected level completion, done=%v err=%v", levelDone, err)
	}

	entries, err := service.Finish(ctx, session.ID(), "Alice")
	if err != nil {
		t.Fatalf("finish failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Name != "Alice" || entries[0].Score != 10 || entries[0].Accuracy != 100 {
		t.Fatalf("unexpected leaderboard %+v", entries)
	}
	if got := service.Leaderboard(ctx, "lesson-1"); len(got) != 1 {
		t.Fatalf("expected persisted leaderboard, got %+v", got)
	}
}

func TestSubmitRequiresSessionAndAnswer(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(staticEvaluator{})

	if _, err := service.SubmitAnswer(ctx, "nope", "q1", "x"); err != domain.ErrSessionNotFound {
		t.Fatalf("expected session error, got %v", err)
	}

	session, _ := service.Start(ctx, "lesson-1")
	if _, err := service.SubmitAnswer(ctx, session.ID(), "q1", "   "); err != domain.ErrEmptyAnswer {
		t.Fatalf("expected empty answer error, got %v", err)
	}
	if _, err := service.SubmitAnswer(ctx, session.ID(), "q9", "x"); err != domain.ErrQuestionNotFound {
		t.Fatalf("expected question error, got %v", err)
	}
	if _, err := service.Start(ctx, "missing"); !errors.Is(err, domain.ErrLessonNotFound) {
		t.Fatalf("expected lesson error, got %v", err)
	}
}

func TestSecondSubmissionRejectedWhileEvaluating(t *testing.T) {
	ctx := context.Background()
	eval := &blockingEvaluator{entered: make(chan struct{}), release: make(chan struct{})}
	service, _ := newTestService(eval)
	session, _ := service.Start(ctx, "lesson-1")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, err := service.SubmitAnswer(ctx, session.ID(), "q1", "4"); err != nil {
			t.Errorf("first submit failed: %v", err)
		}
	}()

	<-eval.entered
	if _, err := service.SubmitAnswer(ctx, session.ID(), "q1", "4"); err != domain.ErrEvaluationInFlight {
		t.Fatalf("expected in-flight error, got %v", err)
	}
	close(eval.release)
	wg.Wait()

	if session.Snapshot().Answered != 1 {
		t.Fatalf("expected exactly one applied answer, got %+v", session.Snapshot())
	}
}

func TestAbandonedEvaluationIsDiscarded(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	service, _ := newTestService(cancellingEvaluator{cancel: cancel})
	session, _ := service.Start(context.Background(), "lesson-1")

	if _, err := service.SubmitAnswer(ctx, session.ID(), "q1", "4"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if session.Snapshot().Answered != 0 {
		t.Fatalf("expected no applied answer, got %+v", session.Snapshot())
	}
	if _, _, err := session.BeginEvaluation("q1"); err != nil {
		t.Fatalf("expected guard released, got %v", err)
	}
}

func TestQuestionIsScoredOnce(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(staticEvaluator{eval: domain.Evaluation{Verdict: domain.VerdictCorrect, Score: 100}})
	session, _ := service.Start(ctx, "lesson-1")

	if _, err := service.SubmitAnswer(ctx, session.ID(), "q1", "4"); err != nil {
		t.Fatalf("first submit failed: %v", err)
	}
	for i := 0; i < 4; i++ {
		if _, err := service.SubmitAnswer(ctx, session.ID(), "q1", "4"); err != domain.ErrAlreadyAnswered {
			t.Fatalf("resubmission %d: expected already answered, got %v", i, err)
		}
	}
	if _, _, err := service.Advance(session.ID()); err != nil {
		t.Fatalf("advance failed: %v", err)
	}

	entries, err := service.Finish(ctx, session.ID(), "Cheat")
	if err != nil {
		t.Fatalf("finish failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Score != 10 {
		t.Fatalf("score must not exceed the lesson maximum, got %+v", entries)
	}
	snap := session.Snapshot()
	if snap.Streak != 1 || snap.Correct != 1 || snap.Answered != 1 {
		t.Fatalf("counters inflated: %+v", snap)
	}
}

func TestFinishRequiresCompletedCourseAndRecordsOnce(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(staticEvaluator{eval: domain.Evaluation{Verdict: domain.VerdictCorrect}})
	session, _ := service.Start(ctx, "lesson-1")
	_, _ = service.SubmitAnswer(ctx, session.ID(), "q1", "4")

	if _, err := service.Finish(ctx, session.ID(), "Early"); err != domain.ErrCourseIncomplete {
		t.Fatalf("expected incomplete course error, got %v", err)
	}
	if got := service.Leaderboard(ctx, "lesson-1"); len(got) != 0 {
		t.Fatalf("expected no entry before completion, got %+v", got)
	}

	_, _, _ = service.Advance(session.ID())
	if _, err := service.Finish(ctx, session.ID(), "Ada"); err != nil {
		t.Fatalf("finish failed: %v", err)
	}
	if _, err := service.Finish(ctx, session.ID(), "Ada"); err != domain.ErrAlreadyRecorded {
		t.Fatalf("expected already recorded error, got %v", err)
	}
	if got := service.Leaderboard(ctx, "lesson-1"); len(got) != 1 {
		t.Fatalf("expected exactly one entry, got %+v", got)
	}

	// A replay is a new attempt and may be recorded again.
	_, _ = service.PlayAgain(session.ID())
	_, _ = service.SubmitAnswer(ctx, session.ID(), "q1", "4")
	_, _, _ = service.Advance(session.ID())
	if _, err := service.Finish(ctx, session.ID(), "Ada"); err != nil {
		t.Fatalf("finish after replay failed: %v", err)
	}
	if got := service.Leaderboard(ctx, "lesson-1"); len(got) != 2 {
		t.Fatalf("expected two entries after replay, got %+v", got)
	}
}

func TestSkippedQuestionLowersAccuracy(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(staticEvaluator{eval: domain.Evaluation{Verdict: domain.VerdictCorrect}})
	session, _ := service.Start(ctx, "lesson-1")

	if _, _, err := service.Advance(session.ID()); err != nil {
		t.Fatalf("advance failed: %v", err)
	}
	entries, err := service.Finish(ctx, session.ID(), "Skipper")
	if err != nil {
		t.Fatalf("finish failed: %v", err)
	}
	if entries[0].Accuracy != 0 || entries[0].Score != 0 {
		t.Fatalf("skipping must not earn accuracy, got %+v", entries[0])
	}
}

func TestEvaluationAfterPlayAgainIsDropped(t *testing.T) {
	ctx := context.Background()
	eval := &blockingEvaluator{entered: make(chan struct{}), release: make(chan struct{})}
	service, _ := newTestService(eval)
	session, _ := service.Start(ctx, "lesson-1")

	result := make(chan error, 1)
	go func() {
		_, err := service.SubmitAnswer(ctx, session.ID(), "q1", "4")
		result <- err
	}()

	<-eval.entered
	if _, err := service.PlayAgain(session.ID()); err != nil {
		t.Fatalf("play again failed: %v", err)
	}
	close(eval.release)

	if err := <-result; err != domain.ErrStaleEvaluation {
		t.Fatalf("expected stale evaluation, got %v", err)
	}
	snap := session.Snapshot()
	if snap.Score != 0 || snap.Streak != 0 || snap.Correct != 0 || snap.Answered != 0 {
		t.Fatalf("pre-reset evaluation leaked into the new attempt: %+v", snap)
	}
}

func TestPlayAgainAndLeave(t *testing.T) {
	ctx := context.Background()
	service, sessions := newTestService(staticEvaluator{eval: domain.Evaluation{Verdict: domain.VerdictCorrect}})
	session, _ := service.Start(ctx, "lesson-1")
	_, _ = service.SubmitAnswer(ctx, session.ID(), "q1", "4")

	snap, err := service.PlayAgain(session.ID())
	if err != nil || snap.Score != 0 || snap.Answered != 0 {
		t.Fatalf("expected reset session, got %+v err=%v", snap, err)
	}

	service.Leave(session.ID())
	if sessions.Len() != 0 {
		t.Fatalf("expected session dropped")
	}
	if _, err := service.PlayAgain(session.ID()); err != domain.ErrSessionNotFound {
		t.Fatalf("expected session error, got %v", err)
	}
}

type staticEvaluator struct {
	eval domain.Evaluation
}

func (e staticEvaluator) EvaluateAnswer(context.Context, domain.QuizQuestion, string) domain.Evaluation {
	return e.eval
}

type blockingEvaluator struct {
	entered chan struct{}
	release chan struct{}
}

func (e *blockingEvaluator) EvaluateAnswer(context.Context, domain.QuizQuestion, string) domain.Evaluation {
	close(e.entered)
	<-e.release
	return domain.Evaluation{Verdict: domain.VerdictCorrect}
}

type cancellingEvaluator struct {
	cancel context.CancelFunc
}

func (e cancellingEvaluator) EvaluateAnswer(context.Context, domain.QuizQuestion, string) domain.Evaluation {
	e.cancel()
	return domain.Evaluation{Verdict: domain.VerdictCorrect}
}

func newTestService(eval app.Evaluator) (*app.PlayService, *memory.SessionStore) {
	sessions := memory.NewSessionStore()
	lessons := memory.NewLessonRepository(memory.NewStaticLessonStore(map[string]domain.LessonProject{
		"lesson-1": {
			ID:    "lesson-1",
			Title: "Arithmetic",
			Levels: []domain.LessonLevel{
				{
					ID:    "l1",
					Title: "Addition",
					Questions: []domain.QuizQuestion{
						{ID: "q1", Type: domain.QuestionMultipleChoice, Question: "2 + 2?", Options: []string{"3", "4"}, CorrectAnswer: "4", Points: 10},
					},
				},
			},
		},
	}), 0)
	leaderboard := app.NewLeaderboard(memory.NewKVStore(), "", 0)
	return app.NewPlayService(sessions, lessons, eval, leaderboard), sessions
}
