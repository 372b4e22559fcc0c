package output

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studyrag/internal/models"
)

func TestQuestionCount(t *testing.T) {
	tests := []struct {
		prompt string
		want   int
	}{
		{"", 10},
		{"make it hard", 10},
		{"Give me 5 questions", 5},
		{"a 7 QUIZ please", 7},
		{"12questions on chapter 2", 12},
		{"0 questions", 10},
		{"51 questions", 10},
		{"50 questions", 50},
		{"99999999999999999999 questions", 10},
		{"3 apples and 4 questions", 4},
	}
	for _, tt := range tests {
		t.Run(tt.prompt, func(t *testing.T) {
			assert.Equal(t, tt.want, QuestionCount(tt.prompt))
		})
	}
}

func quizWith(n int) string {
	var b strings.Builder
	for i := 1; i <= n; i++ {
		b.WriteString("Q: something?\nA) one\nB) two\nC) three\nD) four (Correct)\n\n")
	}
	return b.String()
}

func TestCheckQuiz(t *testing.T) {
	partialText := quizWith(7)
	quiz, partial := CheckQuiz(partialText, 10)
	assert.True(t, partial)
	assert.Equal(t, models.PartialQuizBanner+partialText, quiz)
	assert.True(t, strings.HasPrefix(quiz, "⚠️ Only partial quiz generated. Here is what we could extract:\n\n"))

	fullText := quizWith(10)
	quiz, partial = CheckQuiz(fullText, 10)
	assert.False(t, partial)
	assert.Equal(t, fullText, quiz)

	quiz, partial = CheckQuiz(quizWith(12), 10)
	assert.False(t, partial)
	assert.NotContains(t, quiz, "partial")
}

func TestExtractVisualization(t *testing.T) {
	t.Run("valid json", func(t *testing.T) {
		payload, err := ExtractVisualization(`{"description":"x","type":"bar_chart","data":[{"label":"a","value":1}]}`)
		require.NoError(t, err)
		assert.Equal(t, &models.VisualizationPayload{
			Description: "x",
			Type:        "bar_chart",
			Data:        []models.DataPoint{{Label: "a", Value: 1}},
		}, payload)
		assert.False(t, payload.IsSentinel())
	})

	t.Run("json wrapped in prose", func(t *testing.T) {
		payload, err := ExtractVisualization("Here you go:\n```json\n{\"description\":\"sales\",\"type\":\"pie_chart\",\"data\":[{\"label\":\"n\",\"value\":2.5},{\"label\":\"s\",\"value\":4}]}\n```\nHope it helps!")
		require.NoError(t, err)
		assert.Equal(t, "pie_chart", payload.Type)
		assert.Len(t, payload.Data, 2)
		assert.Equal(t, 2.5, payload.Data[0].Value)
	})

	t.Run("sentinel", func(t *testing.T) {
		payload, err := ExtractVisualization("I cannot visualize data from this document.")
		require.NoError(t, err)
		assert.Equal(t, "none", payload.Type)
		assert.Empty(t, payload.Data)
		assert.NotNil(t, payload.Data)
		assert.True(t, payload.IsSentinel())
	})

	t.Run("sentinel comparison is exact", func(t *testing.T) {
		for _, text := range []string{
			"I cannot visualize data from this document",
			"i cannot visualize data from this document.",
			"Sorry. I cannot visualize data from this document.",
		} {
			_, err := ExtractVisualization(text)
			assert.ErrorIs(t, err, models.ErrNoStructuredAnswer, text)
		}
	})

	t.Run("no json", func(t *testing.T) {
		_, err := ExtractVisualization("no chart here")
		assert.ErrorIs(t, err, models.ErrNoStructuredAnswer)
		assert.NotErrorIs(t, err, models.ErrOutputParse)
	})

	t.Run("broken json", func(t *testing.T) {
		_, err := ExtractVisualization("{broken json")
		assert.ErrorIs(t, err, models.ErrOutputParse)
		assert.NotErrorIs(t, err, models.ErrNoStructuredAnswer)
	})

	t.Run("two objects span is invalid", func(t *testing.T) {
		_, err := ExtractVisualization(`{"type":"a"} and {"type":"b"}`)
		assert.ErrorIs(t, err, models.ErrOutputParse)
	})

	t.Run("missing data stays non-nil", func(t *testing.T) {
		payload, err := ExtractVisualization(`{"description":"d","type":"line_chart"}`)
		require.NoError(t, err)
		assert.NotNil(t, payload.Data)
		assert.Empty(t, payload.Data)
	})
}
