package types

import "encoding/json"

// JSON payloads exchanged with the backend REST API. Field names follow the
// backend, not Go conventions.

type RoomOptions struct {
	AllowTimeLimit     bool `json:"allow_time_limit"`
	AllowAIHint        bool `json:"allow_ai_hint"`
	AllowErrorLocation bool `json:"allow_error_location"`
}

type RoomCreateRequest struct {
	CodeID  string       `json:"codeID"`
	PW      string       `json:"pw"`
	UserID  string       `json:"user_id,omitempty"`
	Options *RoomOptions `json:"options,omitempty"`
}

type RoomEnterRequest struct {
	CodeID string `json:"codeID"`
	PW     string `json:"pw"`
}

// RoomEnterResponse is returned by /api/room/enter. The backend also sets the
// guest_id cookie; GuestID mirrors it when present.
type RoomEnterResponse struct {
	GuestID string       `json:"guest_id,omitempty"`
	Options *RoomOptions `json:"options,omitempty"`
}

type UserStats struct {
	ActiveUsers int `json:"active_users"`
	TotalUsers  int `json:"total_users"`
}

type Guest struct {
	ID       string `json:"id"`
	Finished bool   `json:"finished"`
}

type GuestCount struct {
	Count int `json:"count"`
}

type Answer struct {
	ID         int    `json:"id,omitempty"`
	Content    string `json:"content"`
	QuestionID int    `json:"question_id"`
	UserID     string `json:"user_id"`
}

type HintRequest struct {
	UserCode         string `json:"user_code"`
	ProblemStatement string `json:"problem_statement"`
	MaxTokens        int    `json:"max_tokens"`
}

type HintResponse struct {
	Content string `json:"content"`
}

type AnalysisRequest struct {
	Problem   string `json:"problem"`
	Answer    string `json:"answer"`
	MaxTokens int    `json:"max_tokens"`
}

// AnalysisResponse carries the model output verbatim. GeneratedText is itself
// a JSON document, sometimes single-quoted.
type AnalysisResponse struct {
	GeneratedText string `json:"generated_text"`
}

type ExecuteRequest struct {
	Code      string `json:"code"`
	InputData string `json:"input_data,omitempty"`
}

// ExecuteResponse accepts both sandbox revisions: /execute-code/ answers with
// stdout + memory_usage and times in milliseconds, /execute-TimeAndResult with
// output + memory_used_kb and times in seconds. Memory is KiB in both.
type ExecuteResponse struct {
	Output        string  `json:"output,omitempty"`
	Stdout        string  `json:"stdout,omitempty"`
	Error         string  `json:"error,omitempty"`
	ExecutionTime float64 `json:"execution_time"`
	MemoryUsedKB  float64 `json:"memory_used_kb,omitempty"`
	MemoryUsage   float64 `json:"memory_usage,omitempty"`

	// TimeInMillis is set when decoding an /execute-code/ body.
	TimeInMillis bool `json:"-"`
}

func (r *ExecuteResponse) UnmarshalJSON(data []byte) error {
	type plain ExecuteResponse
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(data, &keys); err != nil {
		return err
	}
	has := func(k string) bool {
		_, ok := keys[k]
		return ok
	}
	*r = ExecuteResponse(p)
	r.TimeInMillis = !has("output") && !has("memory_used_kb") && (has("stdout") || has("memory_usage"))
	return nil
}

// Seconds is the execution time in seconds whichever sandbox answered.
func (r ExecuteResponse) Seconds() float64 {
	if r.TimeInMillis {
		return r.ExecutionTime / 1000
	}
	return r.ExecutionTime
}

func (r ExecuteResponse) Text() string {
	if r.Output != "" {
		return r.Output
	}
	return r.Stdout
}

func (r ExecuteResponse) MemoryKB() float64 {
	if r.MemoryUsedKB != 0 {
		return r.MemoryUsedKB
	}
	return r.MemoryUsage
}
