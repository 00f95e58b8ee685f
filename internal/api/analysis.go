package api

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Analysis is the model's static review of one submission.
type Analysis struct {
	TimeComplexity string        `json:"time_complexity"`
	CodeStyle      StyleWarnings `json:"code_style"`
}

// StyleWarnings decodes either a single string or a list of strings.
type StyleWarnings []string

func (w *StyleWarnings) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*w = list
		return nil
	}
	var one string
	if err := json.Unmarshal(data, &one); err != nil {
		return err
	}
	if one == "" {
		*w = nil
		return nil
	}
	*w = strings.Split(strings.TrimSpace(one), "\n")
	return nil
}

// DecodeAnalysis parses generated_text. The model sometimes wraps the JSON in
// a markdown fence or emits Python-style single quotes.
func DecodeAnalysis(text string) (Analysis, error) {
	candidates := []string{text}
	stripped := stripFence(text)
	candidates = append(candidates, stripped, strings.ReplaceAll(stripped, "'", `"`))

	var lastErr error
	for _, c := range candidates {
		var a Analysis
		if err := json.Unmarshal([]byte(c), &a); err != nil {
			lastErr = err
			continue
		}
		if a.TimeComplexity == "" && len(a.CodeStyle) == 0 {
			lastErr = fmt.Errorf("no fields")
			continue
		}
		return a, nil
	}
	return Analysis{}, fmt.Errorf("%w: %w", ErrBadAnalysis, lastErr)
}

func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
