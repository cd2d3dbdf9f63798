package grading

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Progressive grading stages carried on the wire.
type eventStage int

const (
	stageUnknown eventStage = iota
	stageInterim            // stage 1: sentence-level diagnosis underway
	stageFinal              // stage 2: finalized evaluation
	stageError              // terminal server-side failure
)

// streamEvent is the transient, wire-level shape of one SSE frame. It never
// propagates beyond the parsing boundary; frames convert immediately into
// Result values.
type streamEvent struct {
	stage    eventStage
	progress *float64
	message  string
	payload  map[string]interface{}
}

var framePrefix = []byte("data:")

// parseFrame decodes one `data: <json>` frame into a tagged event.
func parseFrame(frame []byte) (streamEvent, error) {
	frame = bytes.TrimSpace(frame)
	if len(frame) == 0 {
		return streamEvent{}, fmt.Errorf("empty frame")
	}
	if !bytes.HasPrefix(frame, framePrefix) {
		return streamEvent{}, fmt.Errorf("frame missing data prefix")
	}

	body := bytes.TrimSpace(bytes.TrimPrefix(frame, framePrefix))

	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		return streamEvent{}, fmt.Errorf("decode frame payload: %w", err)
	}

	event := streamEvent{stage: stageUnknown, payload: payload}

	switch stage := payload["stage"].(type) {
	case float64:
		if stage == 1 {
			event.stage = stageInterim
		} else if stage == 2 {
			event.stage = stageFinal
		}
	case string:
		switch stage {
		case "error":
			event.stage = stageError
		case "1":
			event.stage = stageInterim
		case "2":
			event.stage = stageFinal
		}
	}

	if raw, ok := payload["progress"]; ok && raw != nil {
		progress := toNumber(raw)
		event.progress = &progress
	}

	event.message = toText(payload["message"])

	return event, nil
}

// buildInterim assembles the partial result shown while diagnosis is underway.
// Only fields present on the event are populated; the score stays 0 and the
// suggestion list stays empty until the final stage.
func buildInterim(event streamEvent) *Result {
	result := &Result{Suggestions: []string{}}

	if feedback := toText(firstPresent(event.payload, "teacherComments", "teacher_comments", "feedback")); feedback != "" {
		result.Feedback = SanitizeText(feedback)
	}

	result.ScoreDetails = sanitizeDetails(extractScoreDetails(event.payload))
	result.QuestionType = toText(firstPresent(event.payload, "questionType", "question_type"))
	result.QuestionTypeSource = toText(firstPresent(event.payload, "questionTypeSource", "question_type_source"))

	return result
}

// buildFinal assembles the finalized result, falling back to the interim
// result's fields when the final event omits them.
func buildFinal(event streamEvent, interim *Result) *Result {
	result := normalizeResult(event.payload)

	if interim != nil {
		if result.Feedback == "" {
			result.Feedback = interim.Feedback
		}
		if len(result.Suggestions) == 0 {
			result.Suggestions = interim.Suggestions
		}
		if len(result.ScoreDetails) == 0 {
			result.ScoreDetails = interim.ScoreDetails
		}
		if result.QuestionType == "" {
			result.QuestionType = interim.QuestionType
			result.QuestionTypeSource = interim.QuestionTypeSource
		}
	}

	return &result
}
