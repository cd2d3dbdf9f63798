package dto

import (
	"encoding/json"
	"time"

	"github.com/xiaokaoba/shenlun-go-api/internal/models"
)

// HistoryItemResponse is one row of the history list view.
type HistoryItemResponse struct {
	ID           string    `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	Kind         string    `json:"type"`
	QuestionType string    `json:"questionType,omitempty"`
	Score        *float64  `json:"score,omitempty"`
}

// HistoryDetailResponse is the full archived interaction.
type HistoryDetailResponse struct {
	HistoryItemResponse
	Request  map[string]interface{} `json:"request"`
	Response map[string]interface{} `json:"response"`
	Extra    map[string]interface{} `json:"extra,omitempty"`
}

// NewHistoryItemResponse converts a model into the list-view shape.
func NewHistoryItemResponse(record models.GradingHistory) HistoryItemResponse {
	return HistoryItemResponse{
		ID:           record.ID,
		Timestamp:    record.CreatedAt,
		Kind:         record.Kind,
		QuestionType: record.QuestionType,
		Score:        record.Score,
	}
}

// NewHistoryItemResponseSlice converts a model slice into list-view shapes.
func NewHistoryItemResponseSlice(records []models.GradingHistory) []HistoryItemResponse {
	responses := make([]HistoryItemResponse, 0, len(records))
	for _, record := range records {
		responses = append(responses, NewHistoryItemResponse(record))
	}
	return responses
}

// NewHistoryDetailResponse converts a model into the full detail shape.
func NewHistoryDetailResponse(record models.GradingHistory) HistoryDetailResponse {
	return HistoryDetailResponse{
		HistoryItemResponse: NewHistoryItemResponse(record),
		Request:             decodeJSONMap(record.Request),
		Response:            decodeJSONMap(record.Response),
		Extra:               decodeJSONMap(record.Extra),
	}
}

func decodeJSONMap(raw []byte) map[string]interface{} {
	if len(raw) == 0 {
		return nil
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil
	}
	return decoded
}
