package models

import (
	"time"

	"gorm.io/datatypes"
)

// History record kinds.
const (
	HistoryKindEssay      = "essay"
	HistoryKindAssessment = "assessment"
)

// GradingHistory is one archived grading interaction: the submission that
// went in and the response that came back.
type GradingHistory struct {
	ID           string         `gorm:"primaryKey" json:"id"`
	Kind         string         `gorm:"index" json:"kind"`
	QuestionType string         `json:"question_type"`
	Score        *float64       `json:"score"`
	Request      datatypes.JSON `json:"request"`
	Response     datatypes.JSON `json:"response"`
	Extra        datatypes.JSON `json:"extra"`
	CreatedAt    time.Time      `gorm:"index" json:"created_at"`
}
