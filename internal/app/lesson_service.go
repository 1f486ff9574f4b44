package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"lesson-arcade-service/internal/domain"
	"lesson-arcade-service/internal/gateway"
)

// LessonRepository stores generated lessons so play sessions can load them.
type LessonRepository interface {
	SaveLesson(ctx context.Context, lesson domain.LessonProject) error
	GetLesson(ctx context.Context, lessonID string) (domain.LessonProject, error)
}

// ModelInvoker is the slice of the gateway the lesson use cases need.
type ModelInvoker interface {
	InvokeWithFallback(ctx context.Context, primary, fallback string, req gateway.Request, policy gateway.Policy) (string, error)
}

// ModelTiers names the models and retry policy for each call site.
type ModelTiers struct {
	Primary  string
	Fallback string
	Plan     gateway.Policy
	Evaluate gateway.Policy
	Summary  gateway.Policy
}

// FallbackEvaluation is returned whenever an answer could not be evaluated.
var FallbackEvaluation = domain.Evaluation{
	Verdict:  domain.VerdictIncorrect,
	Score:    0,
	Feedback: "We couldn't evaluate your answer due to a connection error. Please try again.",
}

// LessonService generates lessons, evaluates answers and writes summaries.
type LessonService struct {
	model   ModelInvoker
	tiers   ModelTiers
	lessons LessonRepository
	newID   func() string
}

func NewLessonService(model ModelInvoker, tiers ModelTiers, lessons LessonRepository) *LessonService {
	return &LessonService{
		model:   model,
		tiers:   tiers,
		lessons: lessons,
		newID:   uuid.NewString,
	}
}

// CreateLesson asks the model for a lesson plan and stores the result.
func (s *LessonService) CreateLesson(ctx context.Context, req domain.LessonRequest) (domain.LessonProject, error) {
	if err := validateLessonRequest(req); err != nil {
		return domain.LessonProject{}, err
	}

	text, err := s.model.InvokeWithFallback(ctx, s.tiers.Primary, s.tiers.Fallback, gateway.Request{
		Prompt:            lessonPlanPrompt(req),
		SystemInstruction: lessonSystemInstruction,
		Schema:            &lessonPlanSchema,
		SchemaName:        "lesson_plan",
	}, s.tiers.Plan)
	if err != nil {
		log.Printf("lesson plan generation failed for %s: %v", req.VideoURL, err)
		return domain.LessonProject{}, fmt.Errorf("generate lesson plan: %w", err)
	}

	levels, err := parseLevels(text)
	if err != nil {
		log.Printf("lesson plan for %s: %v", req.VideoURL, err)
		return domain.LessonProject{}, fmt.Errorf("generate lesson plan: %w", err)
	}

	lesson := domain.LessonProject{
		ID:          s.newID(),
		VideoURL:    req.VideoURL,
		Title:       req.Title,
		Description: req.Description,
		Audience:    req.Audience,
		Difficulty:  req.Difficulty,
		Levels:      levels,
	}
	if err := s.lessons.SaveLesson(ctx, lesson); err != nil {
		return domain.LessonProject{}, fmt.Errorf("save lesson: %w", err)
	}
	log.Printf("lesson %s created with %d levels and %d questions", lesson.ID, len(lesson.Levels), lesson.QuestionCount())
	return lesson, nil
}

// GetLesson loads a previously generated lesson.
func (s *LessonService) GetLesson(ctx context.Context, lessonID string) (domain.LessonProject, error) {
	return s.lessons.GetLesson(ctx, lessonID)
}

// EvaluateAnswer grades one answer. It never fails: any model or parse error
// yields FallbackEvaluation so play can continue.
func (s *LessonService) EvaluateAnswer(ctx context.Context, question domain.QuizQuestion, answer string) domain.Evaluation {
	text, err := s.model.InvokeWithFallback(ctx, s.tiers.Primary, s.tiers.Fallback, gateway.Request{
		Prompt:     evaluationPrompt(question, answer),
		Schema:     &evaluationSchema,
		SchemaName: "evaluation",
	}, s.tiers.Evaluate)
	if err != nil {
		log.Printf("evaluation of question %s failed: %v", question.ID, err)
		return FallbackEvaluation
	}
	eval, err := parseEvaluation(text)
	if err != nil {
		log.Printf("evaluation of question %s: %v", question.ID, err)
		return FallbackEvaluation
	}
	return eval
}

// Summarize produces a short plain-text overview of a video lesson.
func (s *LessonService) Summarize(ctx context.Context, req domain.SummaryRequest) (string, error) {
	if strings.TrimSpace(req.Title) == "" {
		return "", fmt.Errorf("%w: title is required", domain.ErrInvalidLessonRequest)
	}
	text, err := s.model.InvokeWithFallback(ctx, s.tiers.Primary, s.tiers.Fallback, gateway.Request{
		Prompt: summaryPrompt(req),
	}, s.tiers.Summary)
	if err != nil {
		log.Printf("summary generation failed for %q: %v", req.Title, err)
		return "", fmt.Errorf("generate summary: %w", err)
	}
	return strings.TrimSpace(text), nil
}

// UserMessage turns a generation error into the text shown to the learner.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, domain.ErrInvalidLessonRequest):
		return err.Error()
	case errors.Is(err, domain.ErrQuotaExhausted):
		return "Usage limit reached. Please try again later."
	default:
		return "Generation failed. Please try again."
	}
}

func validateLessonRequest(req domain.LessonRequest) error {
	u, err := url.Parse(strings.TrimSpace(req.VideoURL))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%w: video url must be an absolute http(s) url", domain.ErrInvalidLessonRequest)
	}
	if !req.Audience.Valid() {
		return fmt.Errorf("%w: unknown audience %q", domain.ErrInvalidLessonRequest, req.Audience)
	}
	if !req.Difficulty.Valid() {
		return fmt.Errorf("%w: unknown difficulty %q", domain.ErrInvalidLessonRequest, req.Difficulty)
	}
	return nil
}

// parseLevels accepts either {"levels": [...]} or a bare array of levels.
func parseLevels(text string) ([]domain.LessonLevel, error) {
	text = stripCodeFence(text)
	if text == "" {
		return nil, fmt.Errorf("%w: empty lesson plan", domain.ErrParseFailure)
	}

	var levels []domain.LessonLevel
	if strings.HasPrefix(text, "[") {
		if err := json.Unmarshal([]byte(text), &levels); err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrParseFailure, err)
		}
	} else {
		var plan struct {
			Levels []domain.LessonLevel `json:"levels"`
		}
		if err := json.Unmarshal([]byte(text), &plan); err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrParseFailure, err)
		}
		levels = plan.Levels
	}
	if len(levels) == 0 {
		return nil, fmt.Errorf("%w: lesson plan has no levels", domain.ErrParseFailure)
	}
	return normalizeLevels(levels), nil
}

// normalizeLevels fills IDs the model left out and keeps IDs unique so
// levels and questions can be addressed.
func normalizeLevels(levels []domain.LessonLevel) []domain.LessonLevel {
	seenLevels := make(map[string]bool, len(levels))
	seenQuestions := make(map[string]bool)
	for i := range levels {
		lvl := &levels[i]
		if lvl.ID == "" || seenLevels[lvl.ID] {
			lvl.ID = fmt.Sprintf("level-%d", i+1)
		}
		seenLevels[lvl.ID] = true

		for j := range lvl.Questions {
			q := &lvl.Questions[j]
			if q.ID == "" || seenQuestions[q.ID] {
				q.ID = fmt.Sprintf("%s-q%d", lvl.ID, j+1)
			}
			seenQuestions[q.ID] = true
			if q.Type != domain.QuestionMultipleChoice {
				q.Type = domain.QuestionShortAnswer
				q.Options = nil
			}
			if q.Points < 0 {
				q.Points = 0
			}
		}
	}
	return levels
}

type modelEvaluation struct {
	IsCorrect      bool   `json:"isCorrect"`
	Score          int    `json:"score"`
	Classification string `json:"classification"`
	Feedback       string `json:"feedback"`
}

// parseEvaluation folds the model's isCorrect/classification pair into one
// verdict. Classification wins; isCorrect only fills in when it is missing.
func parseEvaluation(text string) (domain.Evaluation, error) {
	text = stripCodeFence(text)
	var raw modelEvaluation
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return domain.Evaluation{}, fmt.Errorf("%w: %w", domain.ErrParseFailure, err)
	}

	score := min(max(raw.Score, 0), 100)
	verdict := domain.Verdict(raw.Classification)
	switch verdict {
	case domain.VerdictCorrect, domain.VerdictPartiallyCorrect, domain.VerdictIncorrect:
	case "":
		verdict = domain.VerdictIncorrect
		if raw.IsCorrect {
			verdict = domain.VerdictCorrect
		}
	default:
		return domain.Evaluation{}, fmt.Errorf("%w: unknown classification %q", domain.ErrParseFailure, raw.Classification)
	}
	if verdict == domain.VerdictCorrect && score == 0 {
		score = 100
	}
	return domain.Evaluation{Verdict: verdict, Score: score, Feedback: raw.Feedback}, nil
}

func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}
