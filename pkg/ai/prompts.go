package ai

import (
	"fmt"
	"strings"
)

func diagnosisPrompt(input EssayInput) string {
	builder := strings.Builder{}
	builder.WriteString("你是一位资深申论阅卷专家。请对下面的作答进行逐句批改诊断。\n\n")
	builder.WriteString("## 题型\n")
	builder.WriteString(input.QuestionType)
	builder.WriteString("\n\n## 作答内容\n")
	builder.WriteString(input.Content)
	builder.WriteString("\n\n## 输出要求\n")
	builder.WriteString("按该题型的评分维度逐项打分并给出点评，返回 JSON：\n")
	builder.WriteString(`{"dimensions": {"维度名": {"score": 数值, "feedback": "点评"}}, "teacher_comments": "逐句诊断意见", "summary": "一句话总结"}`)
	builder.WriteString("\n只返回 JSON，不要附加解释。")
	return builder.String()
}

func evaluationPrompt(input EssayInput, diagnosis Diagnosis) string {
	builder := strings.Builder{}
	builder.WriteString("请基于第一阶段的专业诊断结果，生成整体评价。\n\n")
	builder.WriteString("## 题型\n")
	builder.WriteString(input.QuestionType)
	builder.WriteString("\n\n## 诊断结果\n")
	for dimension, feedback := range diagnosis.Dimensions {
		builder.WriteString(fmt.Sprintf("- %s：%.1f 分，%s\n", dimension, feedback.Score, feedback.Feedback))
	}
	if diagnosis.TeacherComments != "" {
		builder.WriteString("\n## 逐句诊断意见\n")
		builder.WriteString(diagnosis.TeacherComments)
	}
	builder.WriteString("\n\n## 输出要求\n")
	builder.WriteString("返回 JSON：\n")
	builder.WriteString(`{"total_score": 数值, "overall_evaluation": "整体评价", "priority_suggestions": ["改进建议"], "strengths_to_maintain": ["保持的优点"], "final_comments": "详细点评"}`)
	builder.WriteString("\n只返回 JSON，不要附加解释。")
	return builder.String()
}

func questionTypePrompt(content string) string {
	builder := strings.Builder{}
	builder.WriteString("你是申论题型专家，请识别下面内容属于哪一种题型。\n\n")
	builder.WriteString("=== 待识别内容 ===\n")
	builder.WriteString(content)
	builder.WriteString("\n\n请只返回以下四个选项中的一个：\n")
	builder.WriteString("- 概括题\n- 综合分析题\n- 对策题\n- 应用文写作题\n\n判断结果：")
	return builder.String()
}
