package ai

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractJSONObjectDirect(t *testing.T) {
	payload, err := extractJSONObject(`{"total_score": 80}`)
	require.NoError(t, err)
	require.InDelta(t, 80, payload["total_score"], 0.001)
}

func TestExtractJSONObjectMarkdownFence(t *testing.T) {
	payload, err := extractJSONObject("```json\n{\"total_score\": 72, \"overall_evaluation\": \"良好\"}\n```")
	require.NoError(t, err)
	require.Equal(t, "良好", payload["overall_evaluation"])
}

func TestExtractJSONObjectEmbeddedInProse(t *testing.T) {
	response := "评分如下：\n{\"total_score\": 65, \"priority_suggestions\": [\"加强论证\",]}\n以上。"
	payload, err := extractJSONObject(response)
	require.NoError(t, err)
	require.InDelta(t, 65, payload["total_score"], 0.001)
}

func TestExtractJSONObjectRejectsNonJSON(t *testing.T) {
	_, err := extractJSONObject("这不是 JSON")
	require.Error(t, err)
}

func TestClampScore(t *testing.T) {
	require.InDelta(t, 75, clampScore(nil), 0.001, "non-numeric scores take the midline default")
	require.InDelta(t, 75, clampScore("abc"), 0.001)
	require.InDelta(t, 88.5, clampScore(88.5), 0.001)
	require.InDelta(t, 88.5, clampScore("88.5"), 0.001)
	require.Zero(t, clampScore(-4.0))
	require.InDelta(t, 100, clampScore(130.0), 0.001)
}

func TestDecodeDiagnosis(t *testing.T) {
	payload, err := extractJSONObject(`{
		"dimensions": {
			"要点齐全": {"score": 32, "feedback": "覆盖大部分要点"},
			"语言规范": {"score": 8, "feedback": "表达通顺"}
		},
		"teacher_comments": "逐句意见",
		"summary": "总体尚可"
	}`)
	require.NoError(t, err)
	require.NoError(t, validateDiagnosis(payload))

	diagnosis := decodeDiagnosis(payload)
	require.Len(t, diagnosis.Dimensions, 2)
	require.InDelta(t, 32, diagnosis.Dimensions["要点齐全"].Score, 0.001)
	require.Equal(t, "逐句意见", diagnosis.TeacherComments)
	require.Equal(t, "总体尚可", diagnosis.Summary)
}

func TestDecodeEvaluation(t *testing.T) {
	payload, err := extractJSONObject(`{
		"total_score": 78,
		"overall_evaluation": "结构清晰",
		"priority_suggestions": ["补充事例", ""],
		"strengths_to_maintain": ["逻辑严密"],
		"final_comments": "详评"
	}`)
	require.NoError(t, err)
	require.NoError(t, validateEvaluation(payload))

	evaluation := decodeEvaluation(payload)
	require.InDelta(t, 78, evaluation.TotalScore, 0.001)
	require.Equal(t, []string{"补充事例"}, evaluation.PrioritySuggestions)
	require.Equal(t, []string{"逻辑严密"}, evaluation.StrengthsToMaintain)
}

func TestValidateDiagnosisRequiresDimensions(t *testing.T) {
	payload, err := extractJSONObject(`{"teacher_comments": "没有维度"}`)
	require.NoError(t, err)
	require.Error(t, validateDiagnosis(payload))
}
