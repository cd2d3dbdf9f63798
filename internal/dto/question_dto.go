package dto

import "github.com/xiaokaoba/shenlun-go-api/internal/models"

// QuestionFilter narrows question-bank queries.
type QuestionFilter struct {
	QuestionType string `json:"question_type" validate:"omitempty"`
	Limit        int    `json:"limit" validate:"omitempty,min=1,max=50"`
}

// QuestionCreateRequest registers a new question in the bank.
type QuestionCreateRequest struct {
	Title             string `json:"title" validate:"required"`
	Content           string `json:"content" validate:"required"`
	QuestionType      string `json:"question_type" validate:"required"`
	QuestionNumber    int    `json:"question_number" validate:"omitempty,min=0"`
	Difficulty        string `json:"difficulty" validate:"omitempty"`
	Source            string `json:"source" validate:"omitempty"`
	Answer            string `json:"answer" validate:"omitempty,oneof=A B C D"`
	AnswerExplanation string `json:"answer_explanation" validate:"omitempty"`
}

// QuestionImageResponse mirrors one attached image.
type QuestionImageResponse struct {
	ID         string `json:"id"`
	ImageURL   string `json:"image_url"`
	ImageType  string `json:"image_type"`
	OrderIndex int    `json:"order_index"`
}

// QuestionResponse is the public shape of a bank question.
type QuestionResponse struct {
	ID                string                  `json:"id"`
	Title             string                  `json:"title"`
	Content           string                  `json:"content"`
	QuestionType      string                  `json:"question_type"`
	QuestionNumber    int                     `json:"question_number"`
	Difficulty        string                  `json:"difficulty"`
	Source            string                  `json:"source"`
	Answer            string                  `json:"answer,omitempty"`
	AnswerExplanation string                  `json:"answer_explanation,omitempty"`
	Images            []QuestionImageResponse `json:"images,omitempty"`
}

// NewQuestionResponse converts a model into its public shape.
func NewQuestionResponse(question models.Question) QuestionResponse {
	images := make([]QuestionImageResponse, 0, len(question.Images))
	for _, image := range question.Images {
		images = append(images, QuestionImageResponse{
			ID:         image.ID,
			ImageURL:   image.ImageURL,
			ImageType:  image.ImageType,
			OrderIndex: image.OrderIndex,
		})
	}

	return QuestionResponse{
		ID:                question.ID,
		Title:             question.Title,
		Content:           question.Content,
		QuestionType:      question.QuestionType,
		QuestionNumber:    question.QuestionNumber,
		Difficulty:        question.Difficulty,
		Source:            question.Source,
		Answer:            question.Answer,
		AnswerExplanation: question.AnswerExplanation,
		Images:            images,
	}
}

// NewQuestionResponseSlice converts a model slice into public shapes.
func NewQuestionResponseSlice(questions []models.Question) []QuestionResponse {
	responses := make([]QuestionResponse, 0, len(questions))
	for _, question := range questions {
		responses = append(responses, NewQuestionResponse(question))
	}
	return responses
}
