package output

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"studyrag/internal/models"
)

const optionMarker = "A)"

var questionCountRe = regexp.MustCompile(`(\d+)\s*(?:questions|quiz)`)

// QuestionCount reads the requested number of questions from a free-text
// prompt such as "give me 5 questions". Missing or out of range values fall
// back to models.DefaultQuestionCount.
func QuestionCount(prompt string) int {
	m := questionCountRe.FindStringSubmatch(strings.ToLower(prompt))
	if m == nil {
		return models.DefaultQuestionCount
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 1 || n > models.MaxQuestionCount {
		return models.DefaultQuestionCount
	}
	return n
}

// CheckQuiz counts the "A)" option markers in a generated quiz. When fewer
// questions than requested came back the text is returned with the partial
// banner in front and partial is true.
func CheckQuiz(text string, requested int) (quiz string, partial bool) {
	if strings.Count(text, optionMarker) < requested {
		return models.PartialQuizBanner + text, true
	}
	return text, false
}

// ExtractVisualization pulls the chart payload out of a generation.
//
// Text between the first '{' and the last '}' is decoded as JSON; when no '}'
// follows the opening brace everything after it is the candidate. Without any
// '{' the text must equal models.NoVisualizationText exactly, which yields the
// sentinel payload.
func ExtractVisualization(text string) (*models.VisualizationPayload, error) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		if text == models.NoVisualizationText {
			return models.NoVisualization(), nil
		}
		return nil, models.ErrNoStructuredAnswer
	}

	candidate := text[start:]
	if end := strings.LastIndexByte(candidate, '}'); end >= 0 {
		candidate = candidate[:end+1]
	}

	var payload models.VisualizationPayload
	if err := json.Unmarshal([]byte(candidate), &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrOutputParse, err)
	}
	if payload.Data == nil {
		payload.Data = []models.DataPoint{}
	}
	return &payload, nil
}
