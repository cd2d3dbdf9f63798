package grading

import "math"

// Question type provenance tags.
const (
	QuestionTypeSourceAI     = "ai"
	QuestionTypeSourceClient = "client"
)

// ScoreDetail is one named grading criterion with its maximum and awarded
// points plus explanatory text.
type ScoreDetail struct {
	Item        string  `json:"item"`
	FullScore   float64 `json:"fullScore"`
	ActualScore float64 `json:"actualScore"`
	Description string  `json:"description"`
}

// Percent returns the awarded share of the criterion clamped to [0,100].
// ActualScore is not guaranteed to fall within [0, FullScore].
func (d ScoreDetail) Percent() float64 {
	if d.FullScore <= 0 {
		return 0
	}
	percent := d.ActualScore / d.FullScore * 100
	if percent < 0 {
		return 0
	}
	if percent > 100 {
		return 100
	}
	return percent
}

// Result is the canonical output of the grading pipeline.
type Result struct {
	Score              float64       `json:"score"`
	Feedback           string        `json:"feedback"`
	Suggestions        []string      `json:"suggestions"`
	ScoreDetails       []ScoreDetail `json:"scoreDetails"`
	QuestionType       string        `json:"questionType,omitempty"`
	QuestionTypeSource string        `json:"questionTypeSource,omitempty"`
}

const displayScaleTolerance = 0.1

// DisplayScale computes the presentation factor applied to rubric maximums so
// they visually sum to 100. Awarded scores are never rescaled.
func DisplayScale(details []ScoreDetail) float64 {
	var sum float64
	for _, detail := range details {
		sum += detail.FullScore
	}

	if sum <= 0 {
		return 1
	}
	if math.Abs(sum-100) <= displayScaleTolerance {
		return 1
	}

	return 100 / sum
}

// ScaledFullScore returns the rubric maximum adjusted by the display scale.
func ScaledFullScore(detail ScoreDetail, scale float64) float64 {
	return detail.FullScore * scale
}
