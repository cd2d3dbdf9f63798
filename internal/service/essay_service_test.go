package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/xiaokaoba/shenlun-go-api/internal/dto"
	"github.com/xiaokaoba/shenlun-go-api/pkg/ai"
	"github.com/xiaokaoba/shenlun-go-api/pkg/grading"
)

type fakeGrader struct {
	questionType string
	detectErr    error
	diagnosis    ai.Diagnosis
	diagnoseErr  error
	evaluation   ai.Evaluation
	evaluateErr  error
}

func (f *fakeGrader) DetectQuestionType(_ context.Context, _ string) (string, error) {
	if f.detectErr != nil {
		return "", f.detectErr
	}
	return f.questionType, nil
}

func (f *fakeGrader) Diagnose(_ context.Context, _ ai.EssayInput) (ai.Diagnosis, error) {
	return f.diagnosis, f.diagnoseErr
}

func (f *fakeGrader) Evaluate(_ context.Context, _ ai.EssayInput, _ ai.Diagnosis) (ai.Evaluation, error) {
	return f.evaluation, f.evaluateErr
}

type fakeResultStore struct {
	latest  *grading.Result
	handoff *grading.Result
}

func (f *fakeResultStore) SaveLatest(_ context.Context, result grading.Result) error {
	f.latest = &result
	return nil
}

func (f *fakeResultStore) SaveHandoff(_ context.Context, result grading.Result) error {
	f.handoff = &result
	return nil
}

func (f *fakeResultStore) LoadLatest(_ context.Context) (grading.Record, bool, error) {
	if f.latest == nil {
		return grading.Record{}, false, nil
	}
	return grading.Record{Result: *f.latest, CapturedAt: time.Now()}, true, nil
}

func (f *fakeResultStore) LoadHandoff(_ context.Context) (grading.Record, bool, error) {
	if f.handoff == nil {
		return grading.Record{}, false, nil
	}
	return grading.Record{Result: *f.handoff, CapturedAt: time.Now()}, true, nil
}

func newEssayService(grader ai.Grader, history *fakeHistoryRepo) EssayService {
	return newEssayServiceWithStore(grader, history, nil)
}

func newEssayServiceWithStore(grader ai.Grader, history *fakeHistoryRepo, store grading.ResultStore) EssayService {
	validate := validator.New(validator.WithRequiredStructEnabled())
	info := AIStatusInfo{Model: "gpt-4o-mini", APIBase: "https://api.example.com/v1", Configured: true}
	return NewEssayService(grader, history, store, validate, nil, info, testLogger())
}

func gradedEvaluation() ai.Evaluation {
	return ai.Evaluation{
		TotalScore:        82,
		OverallEvaluation: "作答要点齐全，结构清楚。",
		PrioritySuggestions: []string{
			"建议进一步提炼材料中的核心要点，避免照抄原文表述",
		},
		StrengthsToMaintain: []string{
			"保持目前条理清晰的作答结构和规范的语言表达",
		},
		FinalComments: strings.Repeat("专家认为该作答在要点提取和结构安排上均有扎实基础。", 3),
	}
}

func TestEssayServiceGradeAssemblesResponse(t *testing.T) {
	grader := &fakeGrader{
		questionType: ai.TypeSummary,
		diagnosis: ai.Diagnosis{
			Dimensions: map[string]ai.DimensionFeedback{
				"要点齐全": {Score: 32, Feedback: "✅ **加分点：**覆盖了大部分材料要点"},
				"概括准确": {Score: 24, Feedback: "概括基本准确"},
			},
			TeacherComments: "逐句诊断完成",
		},
		evaluation: gradedEvaluation(),
	}
	history := &fakeHistoryRepo{}
	svc := newEssayService(grader, history)

	resp, err := svc.Grade(context.Background(), dto.EssaySubmissionRequest{Content: "根据给定资料，概括当前基层治理的主要问题。"})
	require.NoError(t, err)

	require.Equal(t, 82.0, resp.Score)
	require.Equal(t, ai.TypeSummary, resp.QuestionType)
	require.Equal(t, "ai", resp.QuestionTypeSource)

	require.Contains(t, resp.Feedback, "**整体评价：**")
	require.Contains(t, resp.Feedback, "**专业诊断意见：**")
	require.Contains(t, resp.Feedback, "专家认为该作答")

	require.Len(t, resp.Suggestions, 2)

	require.Len(t, resp.ScoreDetails, 2)
	require.Equal(t, "要点齐全", resp.ScoreDetails[0].Item)
	require.Equal(t, 40.0, resp.ScoreDetails[0].FullScore)
	require.Equal(t, 32.0, resp.ScoreDetails[0].ActualScore)
	require.Contains(t, resp.ScoreDetails[0].Description, "【得分点】")
	require.NotContains(t, resp.ScoreDetails[0].Description, "✅")
	require.Equal(t, 30.0, resp.ScoreDetails[1].FullScore)

	require.Len(t, history.records, 1)
	require.Equal(t, ai.TypeSummary, history.records[0].QuestionType)
	require.NotNil(t, history.records[0].Score)
	require.Equal(t, 82.0, *history.records[0].Score)
}

func TestEssayServiceGradeArchivesResult(t *testing.T) {
	grader := &fakeGrader{
		questionType: ai.TypeSummary,
		diagnosis: ai.Diagnosis{
			Dimensions: map[string]ai.DimensionFeedback{
				"要点齐全": {Score: 32, Feedback: "覆盖了大部分材料要点"},
			},
		},
		evaluation: gradedEvaluation(),
	}
	store := &fakeResultStore{}
	svc := newEssayServiceWithStore(grader, &fakeHistoryRepo{}, store)

	_, err := svc.Grade(context.Background(), dto.EssaySubmissionRequest{Content: "概括材料要点。"})
	require.NoError(t, err)

	require.NotNil(t, store.latest)
	require.NotNil(t, store.handoff)
	require.Equal(t, 82.0, store.latest.Score)
	require.Equal(t, *store.latest, *store.handoff)

	replay, err := svc.LatestResult(context.Background())
	require.NoError(t, err)
	require.Equal(t, 82.0, replay.Result.Score)
	require.Equal(t, ai.TypeSummary, replay.Result.QuestionType)
	require.False(t, replay.CapturedAt.IsZero())
}

func TestEssayServiceLatestResultWithoutStore(t *testing.T) {
	svc := newEssayService(&fakeGrader{}, &fakeHistoryRepo{})

	_, err := svc.LatestResult(context.Background())
	require.ErrorIs(t, err, ErrNoFreshResult)
}

func TestEssayServiceGradeDefaultRubricWhenNoDimensions(t *testing.T) {
	grader := &fakeGrader{
		questionType: ai.TypeAnalysis,
		diagnosis:    ai.Diagnosis{Summary: "诊断摘要"},
		evaluation:   ai.Evaluation{TotalScore: 70},
	}
	svc := newEssayService(grader, &fakeHistoryRepo{})

	resp, err := svc.Grade(context.Background(), dto.EssaySubmissionRequest{Content: "请谈谈你对材料的理解。"})
	require.NoError(t, err)

	require.Len(t, resp.ScoreDetails, 1)
	detail := resp.ScoreDetails[0]
	require.Equal(t, "综合评价", detail.Item)
	require.Equal(t, 100.0, detail.FullScore)
	require.Equal(t, 75.0, detail.ActualScore)
	require.Equal(t, "诊断摘要", detail.Description)

	require.Equal(t, defaultSuggestions, resp.Suggestions)
}

func TestEssayServiceGradeSanitizesLeakedInstructions(t *testing.T) {
	grader := &fakeGrader{
		questionType: ai.TypeSummary,
		diagnosis: ai.Diagnosis{
			Dimensions: map[string]ai.DimensionFeedback{
				"要点齐全": {Score: 30, Feedback: "作为AI模型，要点覆盖较全"},
			},
		},
		evaluation: gradedEvaluation(),
	}
	svc := newEssayService(grader, &fakeHistoryRepo{})

	resp, err := svc.Grade(context.Background(), dto.EssaySubmissionRequest{Content: "概括材料要点。", QuestionType: "概括题"})
	require.NoError(t, err)
	require.Equal(t, "client", resp.QuestionTypeSource)
	require.NotContains(t, resp.ScoreDetails[0].Description, "作为AI模型")
	require.Contains(t, resp.ScoreDetails[0].Description, "要点覆盖较全")
}

func TestEssayServiceGradeClassifiesErrors(t *testing.T) {
	cases := []struct {
		name    string
		cause   error
		status  int
		message string
	}{
		{name: "auth", cause: errors.New("invalid api_key provided"), status: 503, message: "AI 认证异常，请稍后重试"},
		{name: "network", cause: errors.New("connection reset by peer"), status: 504, message: "网络超时，请稍后重试"},
		{name: "quota", cause: errors.New("monthly quota exhausted"), status: 429, message: "请求过多，请稍后再试"},
		{name: "model", cause: errors.New("model_not_found: gpt-x"), status: 503, message: "AI 模型不可用，请联系管理员"},
		{name: "unknown", cause: errors.New("boom"), status: 500, message: "服务异常，请稍后再试"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			grader := &fakeGrader{questionType: ai.TypeSummary, diagnoseErr: tc.cause}
			svc := newEssayService(grader, &fakeHistoryRepo{})

			_, err := svc.Grade(context.Background(), dto.EssaySubmissionRequest{Content: "概括材料要点。"})
			var mapped *GradingError
			require.ErrorAs(t, err, &mapped)
			require.Equal(t, tc.status, mapped.Status)
			require.Equal(t, tc.message, mapped.Message)
		})
	}
}

func TestEssayServiceGradeProgressiveEmitsInterimThenFinal(t *testing.T) {
	grader := &fakeGrader{
		questionType: ai.TypeSummary,
		diagnosis: ai.Diagnosis{
			Dimensions: map[string]ai.DimensionFeedback{
				"要点齐全": {Score: 35, Feedback: "覆盖全面"},
			},
			TeacherComments: "逐句诊断已完成，等待整体评价。",
		},
		evaluation: gradedEvaluation(),
	}
	history := &fakeHistoryRepo{}
	svc := newEssayService(grader, history)

	var frames []dto.ProgressFrame
	err := svc.GradeProgressive(context.Background(), dto.EssaySubmissionRequest{Content: "概括材料要点。"}, func(frame dto.ProgressFrame) error {
		frames = append(frames, frame)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, frames, 2)

	require.Equal(t, 1, frames[0].Stage)
	require.Equal(t, 50.0, frames[0].Progress)
	require.Equal(t, "逐句诊断已完成，等待整体评价。", frames[0].TeacherComments)
	require.Zero(t, frames[0].Score)

	require.Equal(t, 2, frames[1].Stage)
	require.Equal(t, 100.0, frames[1].Progress)
	require.Equal(t, 82.0, frames[1].Score)
	require.NotEmpty(t, frames[1].ScoreDetails)

	require.Len(t, history.records, 1)
}

func TestEssayServiceGradeProgressiveEmitsErrorFrame(t *testing.T) {
	grader := &fakeGrader{
		questionType: ai.TypeSummary,
		diagnosis:    ai.Diagnosis{TeacherComments: "诊断完成"},
		evaluateErr:  errors.New("request timeout"),
	}
	history := &fakeHistoryRepo{}
	svc := newEssayService(grader, history)

	var frames []dto.ProgressFrame
	err := svc.GradeProgressive(context.Background(), dto.EssaySubmissionRequest{Content: "概括材料要点。"}, func(frame dto.ProgressFrame) error {
		frames = append(frames, frame)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, frames, 2)
	require.Equal(t, "error", frames[1].Stage)
	require.Equal(t, "网络超时，请稍后重试", frames[1].Message)
	require.Empty(t, history.records, "failed runs are not archived")
}

func TestEssayServiceGradeValidation(t *testing.T) {
	svc := newEssayService(&fakeGrader{questionType: ai.TypeSummary}, &fakeHistoryRepo{})

	_, err := svc.Grade(context.Background(), dto.EssaySubmissionRequest{})
	require.Error(t, err)
	var mapped *GradingError
	require.False(t, errors.As(err, &mapped), "validation failures keep their own error type")
}

func TestEssayServiceAIStatus(t *testing.T) {
	svc := newEssayService(&fakeGrader{questionType: ai.TypeSummary}, &fakeHistoryRepo{})
	status := svc.AIStatus(context.Background())
	require.Equal(t, "ok", status.Status)
	require.Equal(t, "gpt-4o-mini", status.Model)

	unconfigured := NewEssayService(&fakeGrader{}, nil, nil, validator.New(validator.WithRequiredStructEnabled()), nil, AIStatusInfo{}, testLogger())
	status = unconfigured.AIStatus(context.Background())
	require.Equal(t, "unconfigured", status.Status)
}
