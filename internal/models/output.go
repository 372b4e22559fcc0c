package models

const (
	DefaultQuestionCount = 10
	MaxQuestionCount     = 50

	// NoVisualizationText is the exact answer the model is told to give when a chart cannot be built.
	NoVisualizationText = "I cannot visualize data from this document."
	NoVisualizationType = "none"

	PartialQuizBanner = "⚠️ Only partial quiz generated. Here is what we could extract:\n\n"
)

// QuizSpec holds the parameters derived from a quiz request
type QuizSpec struct {
	QuestionCount int
}

// DataPoint is one labelled value of a chart
type DataPoint struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// VisualizationPayload is the structured chart description extracted from a generation
type VisualizationPayload struct {
	Description string      `json:"description"`
	Type        string      `json:"type"`
	Data        []DataPoint `json:"data"`
}

// NoVisualization returns the sentinel payload for documents that hold no chartable data.
func NoVisualization() *VisualizationPayload {
	return &VisualizationPayload{
		Description: NoVisualizationText,
		Type:        NoVisualizationType,
		Data:        []DataPoint{},
	}
}

// IsSentinel reports whether the payload is the "no visualization possible" value.
func (v *VisualizationPayload) IsSentinel() bool {
	return v != nil && v.Type == NoVisualizationType && len(v.Data) == 0
}
