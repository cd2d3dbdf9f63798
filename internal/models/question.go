package models

import "time"

// Question is one entry of the multiple-choice question bank.
type Question struct {
	ID                string          `gorm:"primaryKey" json:"id"`
	Title             string          `gorm:"size:500" json:"title"`
	Content           string          `gorm:"type:text" json:"content"`
	QuestionType      string          `gorm:"size:100;index" json:"question_type"`
	QuestionNumber    int             `json:"question_number"`
	Difficulty        string          `gorm:"size:50" json:"difficulty"`
	Source            string          `gorm:"size:200" json:"source"`
	Answer            string          `gorm:"size:10" json:"answer"`
	AnswerExplanation string          `gorm:"type:text" json:"answer_explanation"`
	Images            []QuestionImage `gorm:"constraint:OnDelete:CASCADE" json:"images"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// QuestionImage is an illustration or data chart attached to a question.
type QuestionImage struct {
	ID         string    `gorm:"primaryKey" json:"id"`
	QuestionID string    `gorm:"index" json:"question_id"`
	ImageURL   string    `gorm:"size:500" json:"image_url"`
	ImageType  string    `gorm:"size:100" json:"image_type"`
	OCRText    string    `gorm:"type:text" json:"ocr_text"`
	OrderIndex int       `json:"order_index"`
	CreatedAt  time.Time `json:"created_at"`
}
