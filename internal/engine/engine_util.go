package engine

import (
	"regexp"
	"strings"
)

const DefaultCode = "// 코드를 입력하세요"

var blankLines = regexp.MustCompile(`\n\s*\n`)

func NewState(allowHint bool) State {
	return State{
		Phase:     PhaseSolving,
		Current:   1,
		Code:      DefaultCode,
		AllowHint: allowHint,
	}
}

// ResumeState rebuilds the solving state of a session that already submitted
// the problems before current. Out-of-range values start from the first problem.
func ResumeState(current int, allowHint bool) State {
	s := NewState(allowHint)
	if current >= 1 && current <= ProblemCount {
		s.Current = current
	}
	return s
}

// FormatCode normalizes editor content before it is sent for a hint.
func FormatCode(raw string) string {
	s := strings.ReplaceAll(raw, "\t", "    ")
	s = strings.TrimSpace(s)
	return blankLines.ReplaceAllString(s, "\n")
}

// ActionLabel is the caption of the advance button for the current problem.
func ActionLabel(s State) string {
	if s.Current < ProblemCount {
		return "다음"
	}
	return "제출"
}

func currentProblem(s State) Problem {
	p, _ := ProblemByID(s.Current)
	return p
}
