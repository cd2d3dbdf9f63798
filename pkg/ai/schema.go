package ai

import "github.com/santhosh-tekuri/jsonschema/v5"

// Stage payload schemas. Validation happens after lenient extraction so that
// a structurally wrong response fails loudly instead of producing a
// half-empty grading.
var (
	diagnosisSchema = jsonschema.MustCompileString("diagnosis.json", `{
		"type": "object",
		"required": ["dimensions"],
		"properties": {
			"dimensions": {
				"type": "object",
				"additionalProperties": {
					"type": "object",
					"required": ["score"],
					"properties": {
						"score": {"type": ["number", "string"]},
						"feedback": {"type": "string"}
					}
				}
			},
			"teacher_comments": {"type": "string"},
			"summary": {"type": "string"}
		}
	}`)

	evaluationSchema = jsonschema.MustCompileString("evaluation.json", `{
		"type": "object",
		"required": ["total_score"],
		"properties": {
			"total_score": {"type": ["number", "string"]},
			"overall_evaluation": {"type": "string"},
			"priority_suggestions": {"type": "array", "items": {"type": "string"}},
			"strengths_to_maintain": {"type": "array", "items": {"type": "string"}},
			"final_comments": {"type": "string"}
		}
	}`)
)

func validateDiagnosis(payload map[string]interface{}) error {
	return diagnosisSchema.Validate(payload)
}

func validateEvaluation(payload map[string]interface{}) error {
	return evaluationSchema.Validate(payload)
}
