package rag

import (
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/prompts"

	"studyrag/internal/models"
	"studyrag/internal/output"
)

const (
	TaskExplain       = "explain"
	TaskQuiz          = "quiz"
	TaskCaseStudy     = "case_study"
	TaskVisualization = "visualize"
)

var summaryPrompt = prompts.NewPromptTemplate(
	"Summarize the following technical content clearly and concisely:\n\n{{.context}}\n\nSummary:",
	[]string{"context"},
)

var explainPrompt = prompts.NewPromptTemplate(
	"Use the following pieces of context to answer the question at the end. "+
		"If you don't know the answer, just say that you don't know, don't try to make up an answer.\n\n"+
		"{{.context}}\n\n"+
		"Question: Explain the concept of '{{.concept}}' in simple terms with examples.\n"+
		"Helpful Answer:",
	[]string{"context", "concept"},
)

var quizPrompt = prompts.NewPromptTemplate(
	"Create a {{.count}}-question multiple-choice quiz based on the following content. "+
		"Each question should have 4 options (A–D), and mark the correct one with '(Correct)':\n\n"+
		"{{.context}}\n\nQuiz:",
	[]string{"context", "count"},
)

var caseStudyPrompt = prompts.NewPromptTemplate(
	"Write a realistic case study grounded in the following content. "+
		"Set the scene, state the problem the people involved face, walk through how the ideas "+
		"in the content apply, and close with discussion questions for students."+
		"{{if .instructions}}\n\nAdditional instructions: {{.instructions}}{{end}}\n\n"+
		"{{.context}}\n\nCase study:",
	[]string{"context", "instructions"},
)

var visualizationPrompt = prompts.NewPromptTemplate(
	"Find numeric data in the following content that could be shown as a chart. "+
		"Answer with a single JSON object and nothing else, shaped like "+
		`{"description": "what the chart shows", "type": "bar_chart", "data": [{"label": "name", "value": 1}]}`+
		". The type must be one of bar_chart, line_chart or pie_chart. "+
		"If the content holds no data worth charting, answer exactly: "+models.NoVisualizationText+
		"{{if .instructions}}\n\nAdditional instructions: {{.instructions}}{{end}}\n\n"+
		"{{.context}}\n\nJSON:",
	[]string{"context", "instructions"},
)

// Request carries the user supplied parameters of a task run
type Request struct {
	SessionID string
	Concept   string
	Prompt    string
}

// Result is the post-processed answer of a task
type Result struct {
	Task          string
	Text          string
	Partial       bool
	Visualization *models.VisualizationPayload
	Sources       []models.ScoredChunk
}

// Task describes one retrieval-augmented request type. Tasks differ only in
// how they seed retrieval, the prompt they render and how the answer is
// post-processed.
type Task struct {
	Name      string
	TopK      int
	SeedQuery func(req Request) (string, error)
	Template  prompts.PromptTemplate
	Vars      func(req Request) map[string]any
	Post      func(req Request, answer string) (*Result, error)
}

func overview(seed string) func(Request) (string, error) {
	return func(Request) (string, error) { return seed, nil }
}

func instructions(req Request) map[string]any {
	return map[string]any{"instructions": strings.TrimSpace(req.Prompt)}
}

func plain(req Request, answer string) (*Result, error) {
	return &Result{Text: answer}, nil
}

// DefaultTasks returns the built-in tasks keyed by name
func DefaultTasks(conceptTopK, overviewTopK int) map[string]Task {
	tasks := []Task{
		{
			Name: TaskExplain,
			TopK: conceptTopK,
			SeedQuery: func(req Request) (string, error) {
				concept := strings.TrimSpace(req.Concept)
				if concept == "" {
					return "", fmt.Errorf("%w: concept is required", models.ErrInvalidInput)
				}
				return concept, nil
			},
			Template: explainPrompt,
			Vars: func(req Request) map[string]any {
				return map[string]any{"concept": strings.TrimSpace(req.Concept)}
			},
			Post: plain,
		},
		{
			Name:      TaskQuiz,
			TopK:      overviewTopK,
			SeedQuery: overview("overview"),
			Template:  quizPrompt,
			Vars: func(req Request) map[string]any {
				return map[string]any{"count": output.QuestionCount(req.Prompt)}
			},
			Post: func(req Request, answer string) (*Result, error) {
				quiz, partial := output.CheckQuiz(answer, output.QuestionCount(req.Prompt))
				return &Result{Text: quiz, Partial: partial}, nil
			},
		},
		{
			Name:      TaskCaseStudy,
			TopK:      overviewTopK,
			SeedQuery: overview("overview"),
			Template:  caseStudyPrompt,
			Vars:      instructions,
			Post:      plain,
		},
		{
			Name:      TaskVisualization,
			TopK:      overviewTopK,
			SeedQuery: overview("data overview"),
			Template:  visualizationPrompt,
			Vars:      instructions,
			Post: func(req Request, answer string) (*Result, error) {
				payload, err := output.ExtractVisualization(answer)
				if err != nil {
					return nil, err
				}
				return &Result{Text: answer, Visualization: payload}, nil
			},
		},
	}

	m := make(map[string]Task, len(tasks))
	for _, t := range tasks {
		m[t.Name] = t
	}
	return m
}
