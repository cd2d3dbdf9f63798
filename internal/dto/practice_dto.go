package dto

// AnsweredQuestion is one question outcome from a finished assessment.
type AnsweredQuestion struct {
	QuestionID   string `json:"question_id"`
	QuestionType string `json:"question_type"`
	Correct      bool   `json:"correct"`
}

// AssessmentResult summarises a finished assessment run: per-dimension
// scores plus the per-question outcomes.
type AssessmentResult struct {
	DimensionScores map[string]float64 `json:"dimension_scores" validate:"required"`
	DetailedScores  []AnsweredQuestion `json:"detailed_scores"`
}

// PracticeRequest asks for a personalized question set based on an
// assessment result.
type PracticeRequest struct {
	AssessmentResult *AssessmentResult `json:"assessment_result" validate:"required"`
}

// RecommendedQuestion is one question of a personalized set together with
// the reason it was picked.
type RecommendedQuestion struct {
	QuestionResponse
	RecommendationReason string `json:"recommendation_reason"`
	SequenceNumber       int    `json:"sequence_number"`
}

// RecommendationSummary explains the composition of a personalized set.
type RecommendationSummary struct {
	WrongQuestionTypes []string `json:"wrong_question_types"`
	WeakDimensions     []string `json:"weak_dimensions"`
	StrongDimensions   []string `json:"strong_dimensions"`
}

// PracticeResponse is a personalized practice set.
type PracticeResponse struct {
	Questions             []RecommendedQuestion `json:"questions"`
	TotalQuestions        int                   `json:"total_questions"`
	RecommendationSummary RecommendationSummary `json:"recommendation_summary"`
}
