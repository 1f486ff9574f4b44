package domain

import "errors"

var (
	// ErrRateLimited is returned when the model endpoint reports a quota or 429 condition.
	ErrRateLimited = errors.New("model rate limited")
	// ErrOverloaded is returned when the model endpoint is temporarily unavailable.
	ErrOverloaded = errors.New("model overloaded")
	// ErrRemote covers every other model failure; it is never retried.
	ErrRemote = errors.New("model request failed")
	// ErrQuotaExhausted means both model tiers ran out of retries on rate-limit or overload grounds.
	ErrQuotaExhausted = errors.New("model quota exhausted")
	// ErrParseFailure means the model response was not the JSON we asked for.
	ErrParseFailure = errors.New("model response could not be parsed")
	// ErrStorageFailure wraps persistence write errors; it is logged, not surfaced.
	ErrStorageFailure = errors.New("storage write failed")

	ErrLessonNotFound = errors.New("lesson not found")
	// ErrInvalidLessonRequest is returned when setup input is missing or out of range.
	ErrInvalidLessonRequest = errors.New("invalid lesson request")
	// ErrSessionNotFound is returned when a play session has not been started.
	ErrSessionNotFound = errors.New("play session not found")
	ErrLevelNotFound   = errors.New("level not found")
	// ErrQuestionNotFound indicates a submitted question ID is not part of the current level.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrEvaluationInFlight rejects a second submission while one is being evaluated.
	ErrEvaluationInFlight = errors.New("answer evaluation already in progress")
	ErrEmptyAnswer        = errors.New("answer is empty")
	// ErrAlreadyAnswered rejects a question that was already scored in this attempt.
	ErrAlreadyAnswered = errors.New("question already answered")
	// ErrNotCurrentQuestion rejects answers to any question but the one being shown.
	ErrNotCurrentQuestion = errors.New("question is not the current question")
	// ErrStaleEvaluation reports an evaluation that finished after the session was reset.
	ErrStaleEvaluation = errors.New("evaluation belongs to an earlier attempt")
	// ErrCourseIncomplete is returned when finishing before every level is completed.
	ErrCourseIncomplete = errors.New("course not completed")
	// ErrAlreadyRecorded is returned when an attempt already has a leaderboard entry.
	ErrAlreadyRecorded = errors.New("attempt already recorded")
	// ErrMetadataUnavailable is returned when an oEmbed lookup fails.
	ErrMetadataUnavailable = errors.New("video metadata unavailable")
)

// Retryable reports whether err is a transient model failure worth retrying.
func Retryable(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrOverloaded)
}
