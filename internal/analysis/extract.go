package analysis

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// ErrNoJSON is returned when a model reply contains no JSON object.
	ErrNoJSON = errors.New("analysis: no JSON object in reply")
	// ErrInvalidPlan is returned when the extracted JSON is not a board.
	ErrInvalidPlan = errors.New("analysis: reply is not a board")
)

var (
	jsonFence  = regexp.MustCompile("```json\\s*")
	plainFence = regexp.MustCompile("```\\s*")
)

// ExtractJSON strips markdown code fences from text and returns the span from
// the first '{' to the last '}'.
func ExtractJSON(text string) (string, error) {
	cleaned := jsonFence.ReplaceAllString(text, "")
	cleaned = plainFence.ReplaceAllString(cleaned, "")
	cleaned = strings.TrimSpace(cleaned)

	start := strings.IndexByte(cleaned, '{')
	end := strings.LastIndexByte(cleaned, '}')
	if start < 0 || end < start {
		return "", ErrNoJSON
	}
	return cleaned[start : end+1], nil
}

// ExtractPlan extracts the board JSON from a model reply and checks that it is
// an object with "columns" and "tasks" arrays.
func ExtractPlan(text string) (string, error) {
	js, err := ExtractJSON(text)
	if err != nil {
		return "", err
	}

	var shape struct {
		Columns []json.RawMessage `json:"columns"`
		Tasks   []json.RawMessage `json:"tasks"`
	}
	if err := json.Unmarshal([]byte(js), &shape); err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidPlan, err)
	}
	if shape.Columns == nil || shape.Tasks == nil {
		return "", fmt.Errorf("%w: missing columns or tasks", ErrInvalidPlan)
	}
	return js, nil
}
