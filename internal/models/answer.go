package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
)

type AnswerKind string

const (
	AnswerKindOption  AnswerKind = "option"
	AnswerKindOptions AnswerKind = "options"
	AnswerKindText    AnswerKind = "text"
)

// ErrMalformedAnswer is returned when a submitted answer is neither an option id,
// a list of option ids nor a string.
var ErrMalformedAnswer = errors.New("answer must be an option id, a list of option ids or text")

// Answer is one submitted answer. On the wire it is a JSON number (single option),
// an array of numbers (option set) or a string (free text).
type Answer struct {
	Kind      AnswerKind
	OptionID  uint
	OptionIDs []uint
	Text      string
}

func OptionAnswer(id uint) Answer {
	return Answer{Kind: AnswerKindOption, OptionID: id}
}

func OptionSetAnswer(ids ...uint) Answer {
	return Answer{Kind: AnswerKindOptions, OptionIDs: append([]uint{}, ids...)}
}

func TextAnswer(text string) Answer {
	return Answer{Kind: AnswerKindText, Text: text}
}

// OptionSet returns the submitted option ids as a set.
func (a Answer) OptionSet() map[uint]struct{} {
	set := make(map[uint]struct{}, len(a.OptionIDs))
	for _, id := range a.OptionIDs {
		set[id] = struct{}{}
	}
	return set
}

func (a Answer) MarshalJSON() ([]byte, error) {
	switch a.Kind {
	case AnswerKindOption:
		return json.Marshal(a.OptionID)
	case AnswerKindOptions:
		ids := append([]uint{}, a.OptionIDs...)
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		return json.Marshal(ids)
	case AnswerKindText:
		return json.Marshal(a.Text)
	}
	return []byte("null"), nil
}

func (a *Answer) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return ErrMalformedAnswer
	}

	switch data[0] {
	case '"':
		var text string
		if err := json.Unmarshal(data, &text); err != nil {
			return ErrMalformedAnswer
		}
		*a = TextAnswer(text)
		return nil
	case '[':
		var ids []uint
		if err := json.Unmarshal(data, &ids); err != nil {
			return ErrMalformedAnswer
		}
		*a = OptionSetAnswer(ids...)
		return nil
	case 'n':
		*a = Answer{}
		return nil
	}

	id, err := strconv.ParseUint(string(data), 10, 64)
	if err != nil {
		return ErrMalformedAnswer
	}
	*a = OptionAnswer(uint(id))
	return nil
}

// AnswerSheet maps question ids to submitted answers. A null answer is treated as
// not submitted.
type AnswerSheet map[uint]Answer

func (s *AnswerSheet) UnmarshalJSON(data []byte) error {
	var raw map[string]Answer
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	sheet := make(AnswerSheet, len(raw))
	seen := make(map[uint64]string, len(raw))
	for key, answer := range raw {
		id, err := strconv.ParseUint(key, 10, 64)
		if err != nil || id == 0 {
			return fmt.Errorf("invalid question id %q", key)
		}
		if other, dup := seen[id]; dup {
			return fmt.Errorf("question %d is answered twice (keys %q and %q)", id, other, key)
		}
		seen[id] = key
		if answer.Kind == "" {
			continue
		}
		sheet[uint(id)] = answer
	}
	*s = sheet
	return nil
}
