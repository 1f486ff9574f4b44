package app

import (
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai/jsonschema"
	"lesson-arcade-service/internal/domain"
)

const lessonSystemInstruction = "You are a precise JSON generator for educational content."

var questionSchema = jsonschema.Definition{
	Type: jsonschema.Object,
	Properties: map[string]jsonschema.Definition{
		"id":       {Type: jsonschema.String},
		"type":     {Type: jsonschema.String, Enum: []string{string(domain.QuestionMultipleChoice), string(domain.QuestionShortAnswer)}},
		"question": {Type: jsonschema.String},
		"options": {
			Type:        jsonschema.Array,
			Items:       &jsonschema.Definition{Type: jsonschema.String},
			Description: "Provide 4 options if type is multiple_choice. Empty if short_answer.",
		},
		"correctAnswer": {Type: jsonschema.String, Description: "The correct option or a grading rubric/key facts for short answers."},
		"explanation":   {Type: jsonschema.String, Description: "Why the answer is correct."},
		"points":        {Type: jsonschema.Integer, Description: "Suggest points (e.g. 10 or 20)."},
	},
	Required: []string{"id", "type", "question", "correctAnswer", "explanation", "points"},
}

var levelSchema = jsonschema.Definition{
	Type: jsonschema.Object,
	Properties: map[string]jsonschema.Definition{
		"id":             {Type: jsonschema.String},
		"title":          {Type: jsonschema.String},
		"description":    {Type: jsonschema.String},
		"timeRangeStart": {Type: jsonschema.String, Description: "Optional timestamp e.g. '00:00'"},
		"timeRangeEnd":   {Type: jsonschema.String, Description: "Optional timestamp e.g. '03:15'"},
		"questions":      {Type: jsonschema.Array, Items: &questionSchema},
	},
	Required: []string{"id", "title", "description", "questions"},
}

// lessonPlanSchema wraps the level list in an object; chat completion
// schemas must have an object at the root.
var lessonPlanSchema = jsonschema.Definition{
	Type: jsonschema.Object,
	Properties: map[string]jsonschema.Definition{
		"levels": {Type: jsonschema.Array, Items: &levelSchema},
	},
	Required: []string{"levels"},
}

var evaluationSchema = jsonschema.Definition{
	Type: jsonschema.Object,
	Properties: map[string]jsonschema.Definition{
		"isCorrect": {Type: jsonschema.Boolean},
		"score":     {Type: jsonschema.Integer, Description: "0-100"},
		"classification": {
			Type: jsonschema.String,
			Enum: []string{string(domain.VerdictCorrect), string(domain.VerdictPartiallyCorrect), string(domain.VerdictIncorrect)},
		},
		"feedback": {Type: jsonschema.String, Description: "Coaching feedback or explanation."},
	},
	Required: []string{"isCorrect", "score", "classification", "feedback"},
}

func lessonPlanPrompt(req domain.LessonRequest) string {
	var sb strings.Builder
	sb.WriteString("You are an expert educational designer. Create a structured interactive lesson plan based on the following YouTube video context.\n\n")
	fmt.Fprintf(&sb, "Video URL: %s\n", req.VideoURL)
	fmt.Fprintf(&sb, "Title: %s\n", req.Title)
	fmt.Fprintf(&sb, "Description: %s\n", req.Description)
	fmt.Fprintf(&sb, "Target Audience: %s\n", req.Audience)
	fmt.Fprintf(&sb, "Difficulty: %s\n\n", req.Difficulty)
	sb.WriteString("Instructions:\n")
	sb.WriteString("1. Break the lesson into 3-5 distinct \"Levels\" representing logical progressions in the topic.\n")
	sb.WriteString("2. For each level, generate 2-3 quiz questions. Mix multiple_choice and short_answer types.\n")
	sb.WriteString("3. Ensure the content is appropriate for the target audience and difficulty.\n")
	sb.WriteString("4. Return ONLY the JSON object with the list of levels.\n")
	return sb.String()
}

func evaluationPrompt(question domain.QuizQuestion, answer string) string {
	reference := question.CorrectAnswer
	if strings.TrimSpace(reference) == "" {
		reference = "Check for conceptual accuracy."
	}

	var sb strings.Builder
	sb.WriteString("Evaluate the student's answer.\n\n")
	fmt.Fprintf(&sb, "Question: %q\n", question.Question)
	fmt.Fprintf(&sb, "Student Answer: %q\n", answer)
	fmt.Fprintf(&sb, "Reference/Correct Answer/Rubric: %q\n", reference)
	fmt.Fprintf(&sb, "Type: %s\n\n", question.Type)
	sb.WriteString("Task:\n")
	sb.WriteString("- If multiple_choice, check if the answer matches the reference.\n")
	sb.WriteString("- If short_answer, score correctness 0-100 based on the reference rubric.\n")
	sb.WriteString("- Provide helpful, encouraging, but concise feedback.\n")
	return sb.String()
}

func summaryPrompt(req domain.SummaryRequest) string {
	var sb strings.Builder
	sb.WriteString("Write a short overview (3-4 sentences) of what a learner will get out of this video lesson.\n\n")
	fmt.Fprintf(&sb, "Title: %s\n", req.Title)
	if req.Author != "" {
		fmt.Fprintf(&sb, "Author: %s\n", req.Author)
	}
	fmt.Fprintf(&sb, "Target Audience: %s\n", req.Audience)
	fmt.Fprintf(&sb, "Difficulty: %s\n\n", req.Difficulty)
	sb.WriteString("Answer in plain text without markdown.\n")
	return sb.String()
}
