package grading

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func streamingServer(t *testing.T, streamBody string, fallback http.HandlerFunc) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case progressivePath:
			if streamBody == "" {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.Header().Set("Content-Type", "text/event-stream")
			_, _ = w.Write([]byte(streamBody))
		case oneShotPath:
			if fallback != nil {
				fallback(w, r)
				return
			}
			w.WriteHeader(http.StatusInternalServerError)
		default:
			http.NotFound(w, r)
		}
	}))
}

func newTestClient(baseURL string, opts ...Option) *Client {
	opts = append([]Option{WithTickInterval(0)}, opts...)
	return NewClient(baseURL, opts...)
}

func TestGradeRejectsEmptyInputWithoutNetworkCall(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	cases := []struct {
		name     string
		material string
		answer   string
	}{
		{name: "empty material", material: "", answer: "作答内容"},
		{name: "whitespace material", material: "   \n\t", answer: "作答内容"},
		{name: "empty answer", material: "材料内容", answer: ""},
		{name: "whitespace answer", material: "材料内容", answer: "  "},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := client.Grade(context.Background(), tc.material, tc.answer)
			require.Nil(t, result)

			var validationErr *ValidationError
			require.ErrorAs(t, err, &validationErr)
		})
	}

	require.Zero(t, hits.Load(), "validation failures must never reach the network")
}

func TestGradeAppliesValidFramesAroundMalformedOne(t *testing.T) {
	stream := `data: {"stage": 1, "progress": 40, "teacherComments": "诊断进行中", "questionType": "概括题", "questionTypeSource": "ai"}` + "\n\n" +
		"data: {not valid json\n\n" +
		`data: {"stage": 2, "score": 81, "feedback": "整体评价良好", "suggestions": ["注意格式"], "scoreDetails": [{"item": "要点全面", "fullScore": 50, "actualScore": 40, "description": "覆盖大部分要点"}]}` + "\n\n"

	server := streamingServer(t, stream, nil)
	defer server.Close()

	client := newTestClient(server.URL)
	result, err := client.Grade(context.Background(), "材料", "作答")
	require.NoError(t, err)
	require.NotNil(t, result)

	require.InDelta(t, 81, result.Score, 0.001)
	require.Equal(t, "整体评价良好", result.Feedback)
	require.Equal(t, []string{"注意格式"}, result.Suggestions)
	require.Len(t, result.ScoreDetails, 1)
	require.Equal(t, "要点全面", result.ScoreDetails[0].Item)
	require.Equal(t, "概括题", result.QuestionType)
	require.Equal(t, QuestionTypeSourceAI, result.QuestionTypeSource)

	snapshot := client.Tracker().Snapshot()
	require.Equal(t, StateDone, snapshot.State)
	require.InDelta(t, 100, snapshot.Progress, 0.001)
}

func TestGradeFinalStageRetainsInterimRubric(t *testing.T) {
	stream := `data: {"stage": 1, "teacherComments": "逐句诊断", "scoreDetails": [{"item": "结构清晰", "fullScore": 30, "actualScore": 22, "description": "作为AI模型，结构基本合理"}]}` + "\n\n" +
		`data: {"stage": 2, "score": 74, "feedback": "评价", "suggestions": ["建议一"]}` + "\n\n"

	server := streamingServer(t, stream, nil)
	defer server.Close()

	client := newTestClient(server.URL)
	result, err := client.Grade(context.Background(), "材料", "作答")
	require.NoError(t, err)

	require.Len(t, result.ScoreDetails, 1)
	require.Equal(t, "结构清晰", result.ScoreDetails[0].Item)
	require.Equal(t, "结构基本合理", result.ScoreDetails[0].Description, "interim rubric must be retained sanitized")
}

func TestGradeErrorStageStopsProcessingAndSurfacesMessage(t *testing.T) {
	stream := `data: {"stage": "error", "message": "quota exceeded"}` + "\n\n" +
		`data: {"stage": 2, "score": 95, "feedback": "should never be applied"}` + "\n\n"

	server := streamingServer(t, stream, nil)
	defer server.Close()

	client := newTestClient(server.URL)
	result, err := client.Grade(context.Background(), "材料", "作答")
	require.Nil(t, result)

	var failure *FailureError
	require.ErrorAs(t, err, &failure)
	require.Equal(t, "quota exceeded", failure.Message)

	snapshot := client.Tracker().Snapshot()
	require.Equal(t, StateFailed, snapshot.State)
	require.Nil(t, snapshot.Result, "frames after the error stage must not mutate state")
}

func TestGradeStreamWithoutFinalStageKeepsInterimResult(t *testing.T) {
	stream := `data: {"stage": 1, "progress": 35, "teacherComments": "诊断意见", "questionType": "对策题"}` + "\n\n"

	server := streamingServer(t, stream, nil)
	defer server.Close()

	client := newTestClient(server.URL)
	result, err := client.Grade(context.Background(), "材料", "作答")
	require.NoError(t, err, "a stream that closes without a final stage is a degraded outcome, not an error")

	require.Zero(t, result.Score)
	require.Equal(t, "诊断意见", result.Feedback)
	require.Equal(t, "对策题", result.QuestionType)
}

func TestGradeFallsBackWhenStreamUnavailable(t *testing.T) {
	server := streamingServer(t, "", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"score": 66, "feedback": "一次性批改", "suggestions": ["加强论证"], "score_details": {"data": [{"item": "论证深度", "full_score": 40, "actual_score": 28, "description": "论证尚可"}]}}`))
	})
	defer server.Close()

	client := newTestClient(server.URL)
	result, err := client.Grade(context.Background(), "材料", "作答")
	require.NoError(t, err)

	require.InDelta(t, 66, result.Score, 0.001)
	require.Equal(t, "一次性批改", result.Feedback)
	require.Len(t, result.ScoreDetails, 1)
	require.Equal(t, "论证深度", result.ScoreDetails[0].Item)
	require.InDelta(t, 40, result.ScoreDetails[0].FullScore, 0.001)
	require.InDelta(t, 28, result.ScoreDetails[0].ActualScore, 0.001)

	require.Equal(t, StateDone, client.Tracker().Snapshot().State)
}

func TestGradeFallbackSynthesizesRubricWhenMissing(t *testing.T) {
	server := streamingServer(t, "", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"score": 72, "feedback": "无细则返回"}`))
	})
	defer server.Close()

	client := newTestClient(server.URL)
	result, err := client.Grade(context.Background(), "材料", "作答")
	require.NoError(t, err)

	require.Len(t, result.ScoreDetails, 1)
	require.Equal(t, "overall", result.ScoreDetails[0].Item)
	require.InDelta(t, 100, result.ScoreDetails[0].FullScore, 0.001)
	require.InDelta(t, 72, result.ScoreDetails[0].ActualScore, 0.001)
}

func TestGradeFallbackFailureIsTerminal(t *testing.T) {
	server := streamingServer(t, "", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"detail": "AI 认证异常，请稍后重试"}`))
	})
	defer server.Close()

	client := newTestClient(server.URL)
	result, err := client.Grade(context.Background(), "材料", "作答")
	require.Nil(t, result)

	var failure *FailureError
	require.ErrorAs(t, err, &failure)
	require.Equal(t, "AI 认证异常，请稍后重试", failure.Message)
	require.Equal(t, StateFailed, client.Tracker().Snapshot().State)
}

func TestGradePersistsResultToStore(t *testing.T) {
	stream := `data: {"stage": 2, "score": 90, "feedback": "好", "suggestions": [], "scoreDetails": [{"item": "综合评价", "fullScore": 100, "actualScore": 90, "description": "优秀"}]}` + "\n\n"

	server := streamingServer(t, stream, nil)
	defer server.Close()

	store := &recordingStore{}
	client := newTestClient(server.URL, WithStore(store))

	_, err := client.Grade(context.Background(), "材料", "作答")
	require.NoError(t, err)

	require.NotNil(t, store.latest)
	require.NotNil(t, store.handoff)
	require.InDelta(t, 90, store.latest.Score, 0.001)
	require.InDelta(t, 90, store.handoff.Score, 0.001)
}

type recordingStore struct {
	latest  *Result
	handoff *Result
}

func (s *recordingStore) SaveLatest(_ context.Context, result Result) error {
	s.latest = &result
	return nil
}

func (s *recordingStore) SaveHandoff(_ context.Context, result Result) error {
	s.handoff = &result
	return nil
}

func (s *recordingStore) LoadLatest(context.Context) (Record, bool, error) {
	return Record{}, false, nil
}

func (s *recordingStore) LoadHandoff(context.Context) (Record, bool, error) {
	return Record{}, false, nil
}
