package ai

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var (
	trailingObjectComma = regexp.MustCompile(`,\s*}`)
	trailingArrayComma  = regexp.MustCompile(`,\s*]`)
)

// extractJSONObject pulls a JSON object out of a raw model response. Models
// wrap their output in markdown fences or prose often enough that a strict
// json.Unmarshal on the whole response is not viable.
func extractJSONObject(response string) (map[string]interface{}, error) {
	cleaned := strings.TrimSpace(response)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var payload map[string]interface{}
	if err := json.Unmarshal([]byte(cleaned), &payload); err == nil {
		return payload, nil
	}

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no json object in model response")
	}

	candidate := cleaned[start : end+1]
	candidate = strings.ReplaceAll(candidate, "\n", " ")
	candidate = trailingObjectComma.ReplaceAllString(candidate, "}")
	candidate = trailingArrayComma.ReplaceAllString(candidate, "]")

	if err := json.Unmarshal([]byte(candidate), &payload); err != nil {
		return nil, fmt.Errorf("parse model response json: %w", err)
	}

	return payload, nil
}

// clampScore bounds a total score to [0,100], substituting the midline
// default when the value is not numeric.
func clampScore(raw interface{}) float64 {
	score, ok := asNumber(raw)
	if !ok {
		return 75
	}
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

func asNumber(raw interface{}) (float64, bool) {
	switch value := raw.(type) {
	case float64:
		return value, true
	case json.Number:
		parsed, err := value.Float64()
		return parsed, err == nil
	case string:
		var parsed float64
		if _, err := fmt.Sscanf(strings.TrimSpace(value), "%g", &parsed); err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

func asString(raw interface{}) string {
	if text, ok := raw.(string); ok {
		return text
	}
	return ""
}

func asStringSlice(raw interface{}) []string {
	entries, ok := raw.([]interface{})
	if !ok {
		return nil
	}
	texts := make([]string, 0, len(entries))
	for _, entry := range entries {
		if text, ok := entry.(string); ok && strings.TrimSpace(text) != "" {
			texts = append(texts, text)
		}
	}
	return texts
}

func decodeDiagnosis(payload map[string]interface{}) Diagnosis {
	diagnosis := Diagnosis{
		Dimensions:      map[string]DimensionFeedback{},
		TeacherComments: asString(payload["teacher_comments"]),
		Summary:         asString(payload["summary"]),
	}

	dimensions, ok := payload["dimensions"].(map[string]interface{})
	if !ok {
		return diagnosis
	}

	for name, raw := range dimensions {
		fields, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		score, _ := asNumber(fields["score"])
		diagnosis.Dimensions[name] = DimensionFeedback{
			Score:    score,
			Feedback: asString(fields["feedback"]),
		}
	}

	return diagnosis
}

func decodeEvaluation(payload map[string]interface{}) Evaluation {
	return Evaluation{
		TotalScore:          clampScore(payload["total_score"]),
		OverallEvaluation:   asString(payload["overall_evaluation"]),
		PrioritySuggestions: asStringSlice(payload["priority_suggestions"]),
		StrengthsToMaintain: asStringSlice(payload["strengths_to_maintain"]),
		FinalComments:       asString(payload["final_comments"]),
	}
}
