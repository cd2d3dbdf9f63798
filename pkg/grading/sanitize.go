package grading

import "regexp"

// sentinelPatterns match boilerplate that indicates leaked internal or system
// instructions in model output. Redaction is best effort: a pattern that does
// not match leaves the text unchanged.
var sentinelPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)as an ai(?: language)? model[,，.。:：]?\s*`),
	regexp.MustCompile(`(?i)system prompt[:：]?\s*`),
	regexp.MustCompile(`(?i)\[internal instructions?\][:：]?\s*`),
	regexp.MustCompile(`作为(?:一个|一名)?\s*(?:AI|人工智能)(?:语言)?(?:大)?模型[，,。.:：]?\s*`),
	regexp.MustCompile(`系统提示(?:词)?[:：]\s*`),
	regexp.MustCompile(`【内部指令】[:：]?\s*`),
	regexp.MustCompile(`(?i)\bignore (?:all )?previous instructions\b[,，.。]?\s*`),
}

// SanitizeText strips leaked instruction boilerplate from a free-text field.
// Empty input is returned as is; sanitization never fails.
func SanitizeText(text string) string {
	if text == "" {
		return text
	}

	for _, pattern := range sentinelPatterns {
		text = pattern.ReplaceAllString(text, "")
	}

	return text
}

func sanitizeSuggestions(suggestions []string) []string {
	cleaned := make([]string, 0, len(suggestions))
	for _, suggestion := range suggestions {
		cleaned = append(cleaned, SanitizeText(suggestion))
	}
	return cleaned
}

func sanitizeDetails(details []ScoreDetail) []ScoreDetail {
	for i := range details {
		details[i].Description = SanitizeText(details[i].Description)
	}
	return details
}
