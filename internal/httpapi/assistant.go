package httpapi

import (
	"context"
	"fmt"
	"strings"

	"github.com/DoyleJ11/codive/pkg/types"
)

// Assistant answers the model and sandbox endpoints. The real backend runs an
// LLM and a Python sandbox; the dev server plugs in something deterministic.
type Assistant interface {
	Hint(ctx context.Context, req types.HintRequest) (string, error)
	Analyze(ctx context.Context, req types.AnalysisRequest) (string, error)
	Execute(ctx context.Context, req types.ExecuteRequest) (types.ExecuteResponse, error)
}

type StubAssistant struct{}

func (StubAssistant) Hint(ctx context.Context, req types.HintRequest) (string, error) {
	lines := 0
	if req.UserCode != "" {
		lines = strings.Count(req.UserCode, "\n") + 1
	}
	return fmt.Sprintf("입력을 먼저 읽고 출력 형식을 확인해 보세요. (%d줄 작성됨)", lines), nil
}

// Analyze answers in the single-quoted style the production model tends to use.
func (StubAssistant) Analyze(ctx context.Context, req types.AnalysisRequest) (string, error) {
	complexity := "O(1)"
	if strings.Contains(req.Answer, "for ") || strings.Contains(req.Answer, "while ") {
		complexity = "O(n)"
	}
	style := "[]"
	if !strings.HasSuffix(req.Answer, "\n") {
		style = "['C0304 - Final newline missing']"
	}
	return fmt.Sprintf("{'time_complexity': '%s', 'code_style': %s}", complexity, style), nil
}

func (StubAssistant) Execute(ctx context.Context, req types.ExecuteRequest) (types.ExecuteResponse, error) {
	return types.ExecuteResponse{Error: "code execution is not available on the dev server"}, nil
}
