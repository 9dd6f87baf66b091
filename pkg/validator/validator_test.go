package validator

import "testing"

func TestSanitizeString(t *testing.T) {
	cases := map[string]string{
		"  Intro   to\tGo  ": "Intro to Go",
		"<b>Bold</b> title":  "Bold title",
		"<p>Lesson</p>\n\n2": "Lesson 2",
		"":                   "",
	}
	for input, want := range cases {
		if got := SanitizeString(input); got != want {
			t.Errorf("SanitizeString(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestQuestionTypeValidation(t *testing.T) {
	Init()

	type payload struct {
		Type string `validate:"question_type"`
	}

	for _, value := range []string{"single_choice", "multi_choice", "true_false", "free_text"} {
		if err := Validate(payload{Type: value}); err != nil {
			t.Errorf("expected %q to be accepted, got %v", value, err)
		}
	}
	if err := Validate(payload{Type: "essay"}); err == nil {
		t.Errorf("expected unknown question type to be rejected")
	}
}
