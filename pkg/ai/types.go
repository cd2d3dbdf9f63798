package ai

import "context"

// EssayInput carries one submission through the two-stage grading pipeline.
type EssayInput struct {
	Content      string
	QuestionType string
}

// DimensionFeedback is the per-criterion outcome of the diagnosis stage.
type DimensionFeedback struct {
	Score    float64 `json:"score"`
	Feedback string  `json:"feedback"`
}

// Diagnosis is the stage-one result: a sentence-level expert review broken
// down by grading dimension.
type Diagnosis struct {
	Dimensions      map[string]DimensionFeedback `json:"dimensions"`
	TeacherComments string                       `json:"teacher_comments"`
	Summary         string                       `json:"summary"`
}

// Evaluation is the stage-two result: the overall verdict built on top of
// the diagnosis.
type Evaluation struct {
	TotalScore          float64  `json:"total_score"`
	OverallEvaluation   string   `json:"overall_evaluation"`
	PrioritySuggestions []string `json:"priority_suggestions"`
	StrengthsToMaintain []string `json:"strengths_to_maintain"`
	FinalComments       string   `json:"final_comments"`
}

// Grader describes an AI model capable of grading shenlun essays in two
// stages, plus recognizing the question type of a submission.
type Grader interface {
	DetectQuestionType(ctx context.Context, content string) (string, error)
	Diagnose(ctx context.Context, input EssayInput) (Diagnosis, error)
	Evaluate(ctx context.Context, input EssayInput, diagnosis Diagnosis) (Evaluation, error)
}
