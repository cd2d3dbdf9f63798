package grading

import "strconv"

// scoreDetailAliases lists the field names under which either endpoint may
// deliver the rubric array. The server's shape is not strictly pinned.
var scoreDetailAliases = []string{"scoreDetails", "score_details", "details"}

// normalizeResult maps a loosely shaped grading payload onto the canonical
// Result. Missing fields default (score 0, arrays empty) and every free-text
// field is sanitized before it can reach a display surface.
func normalizeResult(payload map[string]interface{}) Result {
	score := toNumber(firstPresent(payload, "score", "total_score"))
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	result := Result{
		Score:              score,
		Feedback:           SanitizeText(toText(firstPresent(payload, "feedback", "teacherComments", "teacher_comments"))),
		Suggestions:        sanitizeSuggestions(toTextSlice(payload["suggestions"])),
		ScoreDetails:       sanitizeDetails(extractScoreDetails(payload)),
		QuestionType:       toText(firstPresent(payload, "questionType", "question_type")),
		QuestionTypeSource: toText(firstPresent(payload, "questionTypeSource", "question_type_source")),
	}

	return result
}

// ensureRubric synthesizes a single overall entry when normalization yields no
// usable rubric rows. A score without a rubric must never render an empty table.
func ensureRubric(result *Result) {
	if len(result.ScoreDetails) > 0 {
		return
	}

	result.ScoreDetails = []ScoreDetail{{
		Item:        "overall",
		FullScore:   100,
		ActualScore: result.Score,
		Description: "no rubric returned by server",
	}}
}

// extractScoreDetails locates the rubric array under any accepted alias,
// including the nested {"data": [...]} and {"items": [...]} wrappers, and
// drops entries lacking an identifiable item name.
func extractScoreDetails(payload map[string]interface{}) []ScoreDetail {
	for _, alias := range scoreDetailAliases {
		raw, ok := payload[alias]
		if !ok || raw == nil {
			continue
		}

		if entries := detailEntries(raw); entries != nil {
			return convertScoreDetails(entries)
		}
	}

	return nil
}

func detailEntries(raw interface{}) []interface{} {
	switch value := raw.(type) {
	case []interface{}:
		return value
	case map[string]interface{}:
		for _, key := range []string{"data", "items"} {
			if nested, ok := value[key].([]interface{}); ok {
				return nested
			}
		}
	}
	return nil
}

func convertScoreDetails(entries []interface{}) []ScoreDetail {
	details := make([]ScoreDetail, 0, len(entries))
	for _, entry := range entries {
		fields, ok := entry.(map[string]interface{})
		if !ok {
			continue
		}

		item := toText(firstPresent(fields, "item", "name"))
		if item == "" {
			continue
		}

		details = append(details, ScoreDetail{
			Item:        item,
			FullScore:   toNumber(firstPresent(fields, "fullScore", "full_score")),
			ActualScore: toNumber(firstPresent(fields, "actualScore", "actual_score")),
			Description: toText(firstPresent(fields, "description", "desc")),
		})
	}

	return details
}

func firstPresent(payload map[string]interface{}, keys ...string) interface{} {
	for _, key := range keys {
		if value, ok := payload[key]; ok && value != nil {
			return value
		}
	}
	return nil
}

func toText(value interface{}) string {
	if text, ok := value.(string); ok {
		return text
	}
	return ""
}

func toTextSlice(value interface{}) []string {
	entries, ok := value.([]interface{})
	if !ok {
		return nil
	}

	texts := make([]string, 0, len(entries))
	for _, entry := range entries {
		if text, ok := entry.(string); ok && text != "" {
			texts = append(texts, text)
		}
	}
	return texts
}

func toNumber(value interface{}) float64 {
	switch number := value.(type) {
	case float64:
		return number
	case int:
		return float64(number)
	case string:
		parsed, err := strconv.ParseFloat(number, 64)
		if err != nil {
			return 0
		}
		return parsed
	default:
		return 0
	}
}
