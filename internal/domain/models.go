package domain

import (
	"strings"
	"unicode/utf8"
)

// Audience is the learner tier a lesson is written for.
type Audience string

const (
	AudienceBeginner     Audience = "beginner"
	AudienceIntermediate Audience = "intermediate"
	AudienceAdvanced     Audience = "advanced"
	AudienceProfessional Audience = "professional"
	AudienceChild        Audience = "child"
)

// Valid reports whether a is one of the known audience tiers.
func (a Audience) Valid() bool {
	switch a {
	case AudienceBeginner, AudienceIntermediate, AudienceAdvanced, AudienceProfessional, AudienceChild:
		return true
	}
	return false
}

// Difficulty is the requested difficulty tier of a lesson.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// QuestionType tags how a question is answered.
type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionShortAnswer    QuestionType = "short_answer"
)

// DefaultQuestionPoints is awarded for a correct answer when a question carries no points.
const DefaultQuestionPoints = 10

// QuizQuestion is a single question inside a level.
type QuizQuestion struct {
	ID            string       `json:"id"`
	Type          QuestionType `json:"type"`
	Question      string       `json:"question"`
	Options       []string     `json:"options,omitempty"`       // multiple_choice only
	CorrectAnswer string       `json:"correctAnswer,omitempty"` // reference answer or rubric
	Explanation   string       `json:"explanation,omitempty"`
	Points        int          `json:"points"`
}

// Worth returns the points a fully correct answer earns.
func (q QuizQuestion) Worth() int {
	if q.Points <= 0 {
		return DefaultQuestionPoints
	}
	return q.Points
}

// LessonLevel groups questions around one part of the video.
type LessonLevel struct {
	ID             string         `json:"id"`
	Title          string         `json:"title"`
	Description    string         `json:"description"`
	TimeRangeStart string         `json:"timeRangeStart,omitempty"` // e.g. "02:30"
	TimeRangeEnd   string         `json:"timeRangeEnd,omitempty"`
	Questions      []QuizQuestion `json:"questions"`
}

// LessonProject is a generated course for one source video.
type LessonProject struct {
	ID          string        `json:"id"`
	VideoURL    string        `json:"videoUrl"`
	Title       string        `json:"videoTitle"`
	Description string        `json:"videoDescription"`
	Audience    Audience      `json:"audience"`
	Difficulty  Difficulty    `json:"difficulty"`
	Levels      []LessonLevel `json:"levels"`
}

// Level finds a level by ID.
func (p LessonProject) Level(levelID string) (LessonLevel, bool) {
	for _, lvl := range p.Levels {
		if lvl.ID == levelID {
			return lvl, true
		}
	}
	return LessonLevel{}, false
}

// QuestionCount is the total number of questions across all levels.
func (p LessonProject) QuestionCount() int {
	n := 0
	for _, lvl := range p.Levels {
		n += len(lvl.Questions)
	}
	return n
}

// LessonRequest carries the setup form input for generating a lesson.
type LessonRequest struct {
	VideoURL    string     `json:"videoUrl"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Audience    Audience   `json:"audience"`
	Difficulty  Difficulty `json:"difficulty"`
}

// SummaryRequest carries the inputs for a plain-text lesson summary.
type SummaryRequest struct {
	Title      string     `json:"title"`
	Author     string     `json:"author"`
	Audience   Audience   `json:"audience"`
	Difficulty Difficulty `json:"difficulty"`
}

// VideoMetadata is what an oEmbed lookup returns for a video URL.
type VideoMetadata struct {
	Title      string `json:"title"`
	AuthorName string `json:"author_name"`
}

// Verdict classifies an evaluated answer.
type Verdict string

const (
	VerdictCorrect          Verdict = "correct"
	VerdictPartiallyCorrect Verdict = "partially_correct"
	VerdictIncorrect        Verdict = "incorrect"
)

// Evaluation is the model's judgement of one answer. Score is in [0,100] and
// only changes the award for partially correct answers.
type Evaluation struct {
	Verdict  Verdict `json:"verdict"`
	Score    int     `json:"score"`
	Feedback string  `json:"feedback"`
}

func (e Evaluation) IsCorrect() bool {
	return e.Verdict == VerdictCorrect
}

// Award returns the points earned on a question worth the given points.
func (e Evaluation) Award(worth int) int {
	switch e.Verdict {
	case VerdictCorrect:
		return worth
	case VerdictPartiallyCorrect:
		return worth * e.Score / 100
	default:
		return 0
	}
}

// MaxNameLength bounds leaderboard display names, counted in runes.
const MaxNameLength = 15

// LeaderboardEntry is one finished attempt on a lesson.
type LeaderboardEntry struct {
	Name        string `json:"name"`
	Score       int    `json:"score"`
	Accuracy    int    `json:"accuracy"`    // 0-100
	CompletedAt int64  `json:"completedAt"` // epoch milliseconds
}

// DisplayName trims and bounds a player name for the leaderboard.
func DisplayName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "Player"
	}
	if utf8.RuneCountInString(name) <= MaxNameLength {
		return name
	}
	return string([]rune(name)[:MaxNameLength])
}

// SessionSnapshot is a read-only view of a play session's progress.
type SessionSnapshot struct {
	SessionID       string   `json:"sessionId"`
	LessonID        string   `json:"lessonId"`
	CurrentLevelID  string   `json:"currentLevelId,omitempty"`
	QuestionIndex   int      `json:"questionIndex"`
	Score           int      `json:"score"`
	Streak          int      `json:"streak"`
	MaxStreak       int      `json:"maxStreak"`
	Correct         int      `json:"correct"`
	Answered        int      `json:"answered"`
	Accuracy        int      `json:"accuracy"`
	CompletedLevels []string `json:"completedLevels"`
	Finished        bool     `json:"finished"`
}

// AnswerOutcome summarizes the result of one submitted answer.
type AnswerOutcome struct {
	QuestionID string          `json:"questionId"`
	Evaluation Evaluation      `json:"evaluation"`
	Awarded    int             `json:"awarded"`
	Session    SessionSnapshot `json:"session"`
}
