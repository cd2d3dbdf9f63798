package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/xiaokaoba/shenlun-go-api/internal/dto"
	"github.com/xiaokaoba/shenlun-go-api/internal/handler"
	"github.com/xiaokaoba/shenlun-go-api/internal/service"
)

type mockEssayService struct {
	response dto.GradingResponse
	frames   []dto.ProgressFrame
	latest   *dto.LatestResultResponse
	err      error
}

func (m *mockEssayService) Grade(_ context.Context, _ dto.EssaySubmissionRequest) (dto.GradingResponse, error) {
	if m.err != nil {
		return dto.GradingResponse{}, m.err
	}
	return m.response, nil
}

func (m *mockEssayService) GradeProgressive(_ context.Context, _ dto.EssaySubmissionRequest, emit func(dto.ProgressFrame) error) error {
	for _, frame := range m.frames {
		if err := emit(frame); err != nil {
			return err
		}
	}
	return nil
}

func (m *mockEssayService) LatestResult(_ context.Context) (dto.LatestResultResponse, error) {
	if m.latest == nil {
		return dto.LatestResultResponse{}, service.ErrNoFreshResult
	}
	return *m.latest, nil
}

func (m *mockEssayService) AIStatus(_ context.Context) dto.AIStatusResponse {
	return dto.AIStatusResponse{Status: "ok", Message: "AI 服务可用", Model: "gpt-4o-mini"}
}

func newEssayApp(svc service.EssayService) *fiber.App {
	app := fiber.New()
	handler.NewEssayHandler(svc, zerolog.New(io.Discard)).Register(app.Group("/api/v1/essays"))
	return app
}

func postJSON(t *testing.T, app *fiber.App, path string, payload interface{}) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeResponse(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(target))
}

func TestEssayHandlerGradeReturnsBarePayload(t *testing.T) {
	svc := &mockEssayService{response: dto.GradingResponse{
		Score:    82,
		Feedback: "**整体评价：**\n作答要点齐全。",
		ScoreDetails: []dto.ScoreDetailResponse{
			{Item: "要点齐全", FullScore: 40, ActualScore: 32},
		},
	}}
	app := newEssayApp(svc)

	resp := postJSON(t, app, "/api/v1/essays/grade", dto.EssaySubmissionRequest{Content: "作答内容"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	// The fallback client normalizes the top-level object, so no envelope.
	var payload map[string]interface{}
	decodeResponse(t, resp, &payload)
	require.Equal(t, 82.0, payload["score"])
	require.NotContains(t, payload, "success")
	require.NotEmpty(t, payload["scoreDetails"])
}

func TestEssayHandlerGradeMapsGradingError(t *testing.T) {
	svc := &mockEssayService{err: &service.GradingError{Status: 429, Message: "请求过多，请稍后再试"}}
	app := newEssayApp(svc)

	resp := postJSON(t, app, "/api/v1/essays/grade", dto.EssaySubmissionRequest{Content: "作答内容"})
	require.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)

	var payload struct {
		Success bool   `json:"success"`
		Detail  string `json:"detail"`
	}
	decodeResponse(t, resp, &payload)
	require.False(t, payload.Success)
	require.Equal(t, "请求过多，请稍后再试", payload.Detail)
}

func TestEssayHandlerGradeProgressiveStreamsFrames(t *testing.T) {
	svc := &mockEssayService{frames: []dto.ProgressFrame{
		{Stage: 1, Progress: 50, TeacherComments: "诊断完成"},
		{Stage: 2, Progress: 100, Score: 82},
	}}
	app := newEssayApp(svc)

	resp := postJSON(t, app, "/api/v1/essays/grade-progressive", dto.EssaySubmissionRequest{Content: "作答内容"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	frames := strings.Split(strings.TrimSpace(string(body)), "\n\n")
	require.Len(t, frames, 2)
	for _, frame := range frames {
		require.True(t, strings.HasPrefix(frame, "data: "))
	}

	var final dto.ProgressFrame
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(frames[1], "data: ")), &final))
	require.Equal(t, 82.0, final.Score)
	require.Equal(t, 100.0, final.Progress)
}

func TestEssayHandlerGradeProgressiveRejectsEmptyContent(t *testing.T) {
	app := newEssayApp(&mockEssayService{})

	resp := postJSON(t, app, "/api/v1/essays/grade-progressive", dto.EssaySubmissionRequest{Content: "   "})
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestEssayHandlerLatestResult(t *testing.T) {
	svc := &mockEssayService{latest: &dto.LatestResultResponse{
		Result:     dto.GradingResponse{Score: 78, QuestionType: "概括题"},
		CapturedAt: time.Now(),
	}}
	app := newEssayApp(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/essays/latest-result", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var payload struct {
		Success bool                     `json:"success"`
		Data    dto.LatestResultResponse `json:"data"`
	}
	decodeResponse(t, resp, &payload)
	require.True(t, payload.Success)
	require.Equal(t, 78.0, payload.Data.Result.Score)
}

func TestEssayHandlerLatestResultMissing(t *testing.T) {
	app := newEssayApp(&mockEssayService{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/essays/latest-result", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestEssayHandlerAIStatus(t *testing.T) {
	app := newEssayApp(&mockEssayService{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/essays/ai-status", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var payload dto.AIStatusResponse
	decodeResponse(t, resp, &payload)
	require.Equal(t, "ok", payload.Status)
	require.Equal(t, "gpt-4o-mini", payload.Model)
}
