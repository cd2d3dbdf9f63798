package dto

import "time"

// EssaySubmissionRequest carries one essay submission. QuestionType is
// optional; when absent the AI recognizes the type itself.
type EssaySubmissionRequest struct {
	Content      string `json:"content" validate:"required,min=1"`
	QuestionType string `json:"question_type" validate:"omitempty"`
}

// ScoreDetailResponse is one rubric row of a grading response.
type ScoreDetailResponse struct {
	Item        string  `json:"item"`
	FullScore   float64 `json:"fullScore"`
	ActualScore float64 `json:"actualScore"`
	Description string  `json:"description"`
}

// GradingResponse is the finalized grading payload returned by the one-shot
// endpoint and by the final frame of the progressive stream.
type GradingResponse struct {
	Score              float64               `json:"score"`
	Feedback           string                `json:"feedback"`
	Suggestions        []string              `json:"suggestions"`
	ScoreDetails       []ScoreDetailResponse `json:"scoreDetails"`
	QuestionType       string                `json:"questionType,omitempty"`
	QuestionTypeSource string                `json:"questionTypeSource,omitempty"`
}

// ProgressFrame is one SSE frame of the progressive grading stream. Stage is
// 1 (interim diagnosis), 2 (final evaluation) or the string "error".
type ProgressFrame struct {
	Stage              interface{}           `json:"stage"`
	Progress           float64               `json:"progress,omitempty"`
	TeacherComments    string                `json:"teacherComments,omitempty"`
	Score              float64               `json:"score,omitempty"`
	Feedback           string                `json:"feedback,omitempty"`
	Suggestions        []string              `json:"suggestions,omitempty"`
	ScoreDetails       []ScoreDetailResponse `json:"scoreDetails,omitempty"`
	QuestionType       string                `json:"questionType,omitempty"`
	QuestionTypeSource string                `json:"questionTypeSource,omitempty"`
	Message            string                `json:"message,omitempty"`
}

// LatestResultResponse replays a recently finished grading run together with
// its capture time.
type LatestResultResponse struct {
	Result     GradingResponse `json:"result"`
	CapturedAt time.Time       `json:"capturedAt"`
}

// AIStatusResponse reports whether the grading model is reachable and which
// model is configured.
type AIStatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Model   string `json:"model,omitempty"`
	APIBase string `json:"api_base,omitempty"`
}
