package ai

import "strings"

// The four shenlun question types the platform recognizes.
const (
	TypeSummary     = "概括题"
	TypeAnalysis    = "综合分析题"
	TypeCounterplan = "对策题"
	TypeAppliedDoc  = "应用文写作题"
)

// DefaultQuestionType is used when classification cannot decide.
const DefaultQuestionType = TypeSummary

var validQuestionTypes = []string{TypeSummary, TypeAnalysis, TypeCounterplan, TypeAppliedDoc}

const defaultDimensionFullScore = 25.0

// dimensionFullScores maps each question type to its rubric dimensions and
// their maximum points. Dimensions the model invents fall back to the
// default full score.
var dimensionFullScores = map[string]map[string]float64{
	TypeSummary: {
		"要点齐全": 40,
		"概括准确": 30,
		"条理清晰": 20,
		"语言规范": 10,
	},
	TypeAnalysis: {
		"观点明确": 25,
		"分析深入": 35,
		"逻辑严密": 25,
		"语言规范": 15,
	},
	TypeCounterplan: {
		"对策针对性": 35,
		"对策可行性": 30,
		"条理清晰":  20,
		"语言规范":  15,
	},
	TypeAppliedDoc: {
		"格式规范": 25,
		"内容完整": 35,
		"语言得体": 25,
		"结构清晰": 15,
	},
}

// dimensionOrder fixes the presentation order of each type's rubric rows.
var dimensionOrder = map[string][]string{
	TypeSummary:     {"要点齐全", "概括准确", "条理清晰", "语言规范"},
	TypeAnalysis:    {"观点明确", "分析深入", "逻辑严密", "语言规范"},
	TypeCounterplan: {"对策针对性", "对策可行性", "条理清晰", "语言规范"},
	TypeAppliedDoc:  {"格式规范", "内容完整", "语言得体", "结构清晰"},
}

// DimensionOrder returns the canonical rubric dimensions of a question type,
// in presentation order.
func DimensionOrder(questionType string) []string {
	return dimensionOrder[questionType]
}

// DimensionFullScore returns the rubric maximum for a dimension of the given
// question type.
func DimensionFullScore(questionType, dimension string) float64 {
	if table, ok := dimensionFullScores[questionType]; ok {
		if full, ok := table[dimension]; ok {
			return full
		}
	}
	return defaultDimensionFullScore
}

// NormalizeQuestionType maps a model answer (or user input) onto one of the
// four valid types. Exact match wins, then containment, then keyword
// classification of the text itself, then the default.
func NormalizeQuestionType(answer string) string {
	answer = strings.TrimSpace(answer)

	for _, valid := range validQuestionTypes {
		if answer == valid {
			return valid
		}
	}
	for _, valid := range validQuestionTypes {
		if strings.Contains(answer, valid) {
			return valid
		}
	}

	return ClassifyByKeywords(answer)
}

// ClassifyByKeywords guesses the question type from task verbs in the text.
// Analysis cues take precedence because analysis questions are routinely
// misread as summary questions.
func ClassifyByKeywords(text string) string {
	if containsAny(text, "分析", "理解", "谈谈", "评价", "如何看待", "说明", "阐述", "解释") {
		return TypeAnalysis
	}
	if containsAny(text, "概括", "归纳", "梳理", "总结", "列举") {
		return TypeSummary
	}
	if containsAny(text, "对策", "建议", "措施", "办法", "如何解决", "怎么办") {
		return TypeCounterplan
	}
	if containsAny(text, "倡议书", "讲话稿", "报告", "通知", "发言", "致辞", "公开信") {
		return TypeAppliedDoc
	}

	return DefaultQuestionType
}

func containsAny(text string, keywords ...string) bool {
	for _, keyword := range keywords {
		if strings.Contains(text, keyword) {
			return true
		}
	}
	return false
}
