package models

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestAnswerSheetDecodesEveryShape(t *testing.T) {
	var sheet AnswerSheet
	payload := `{"1": 4, "2": [7, 5], "3": "  Paris ", "4": null}`
	if err := json.Unmarshal([]byte(payload), &sheet); err != nil {
		t.Fatalf("failed to decode answer sheet: %v", err)
	}

	if sheet[1].Kind != AnswerKindOption || sheet[1].OptionID != 4 {
		t.Fatalf("expected option answer, got %+v", sheet[1])
	}
	if sheet[2].Kind != AnswerKindOptions || len(sheet[2].OptionIDs) != 2 {
		t.Fatalf("expected option set answer, got %+v", sheet[2])
	}
	if sheet[3].Kind != AnswerKindText || sheet[3].Text != "  Paris " {
		t.Fatalf("expected text answer, got %+v", sheet[3])
	}
	if _, ok := sheet[4]; ok {
		t.Fatalf("expected null answer to be treated as missing")
	}
}

func TestAnswerRejectsUnsupportedShapes(t *testing.T) {
	for _, payload := range []string{`{"a": 1}`, `true`, `1.5`, `-3`, `["x"]`} {
		var answer Answer
		if err := json.Unmarshal([]byte(payload), &answer); !errors.Is(err, ErrMalformedAnswer) {
			t.Fatalf("expected %s to be rejected, got %v", payload, err)
		}
	}
}

func TestAnswerSheetRejectsInvalidQuestionIDs(t *testing.T) {
	for _, payload := range []string{`{"abc": 1}`, `{"0": 1}`} {
		var sheet AnswerSheet
		if err := json.Unmarshal([]byte(payload), &sheet); err == nil {
			t.Fatalf("expected %s to be rejected", payload)
		}
	}
}

func TestAnswerSheetRejectsKeysNamingTheSameQuestion(t *testing.T) {
	for _, payload := range []string{`{"1": 11, "01": 12}`, `{"7": "a", "007": null}`} {
		var sheet AnswerSheet
		if err := json.Unmarshal([]byte(payload), &sheet); err == nil {
			t.Fatalf("expected %s to be rejected, decoded %+v", payload, sheet)
		}
	}
}

func TestAnswerMarshalSortsOptionSets(t *testing.T) {
	data, err := json.Marshal(AnswerSheet{9: OptionSetAnswer(3, 1, 2)})
	if err != nil {
		t.Fatalf("failed to encode answer sheet: %v", err)
	}
	if string(data) != `{"9":[1,2,3]}` {
		t.Fatalf("unexpected encoding %s", data)
	}
}

func TestCompletedVideosAddIsSetLike(t *testing.T) {
	var completed CompletedVideos
	if !completed.Add(3) || completed.Add(3) || !completed.Add(1) {
		t.Fatalf("expected Add to report insertions only once")
	}
	if len(completed) != 2 || completed[0] != 3 || completed[1] != 1 {
		t.Fatalf("expected insertion order to be kept, got %v", completed)
	}
}

func TestProgressColumnsRoundTripThroughScan(t *testing.T) {
	attempts := QuizAttempts{{ID: "a", QuizID: 1, Answers: AnswerSheet{2: TextAnswer("x")}, Passed: true}}
	value, err := attempts.Value()
	if err != nil {
		t.Fatalf("Value returned error: %v", err)
	}

	var decoded QuizAttempts
	if err := decoded.Scan(value); err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}
	if len(decoded) != 1 || decoded[0].Answers[2].Text != "x" || !decoded[0].Passed {
		t.Fatalf("unexpected decoded attempts %+v", decoded)
	}

	var empty VideoWatchTimes
	if err := empty.Scan(nil); err != nil || empty == nil {
		t.Fatalf("expected nil column to decode into an empty map, got %v (%v)", empty, err)
	}
}
