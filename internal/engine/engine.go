package engine

import (
	"errors"
)

var ErrSessionFinished = errors.New("session already finished")
var ErrFinishing = errors.New("session is finishing")
var ErrNotFinishing = errors.New("session is not finishing")
var ErrHintNotAllowed = errors.New("ai hints are disabled for this room")
var ErrUnsupportedCommand = errors.New("unsupported command")

type Phase string

const (
	PhaseSolving   Phase = "solving"
	PhaseFinishing Phase = "finishing"
	PhaseDone      Phase = "done"
)

type State struct {
	Phase     Phase
	Current   int // 1..ProblemCount
	Code      string
	HintOpen  bool
	HintGen   int
	AllowHint bool
	FinishErr error
}

type CommandType string

const (
	CmdEdit          CommandType = "Edit"
	CmdNext          CommandType = "Next"
	CmdToggleHint    CommandType = "ToggleHint"
	CmdFinishOutcome CommandType = "FinishOutcome"
)

/*
	CmdEdit          -> (no events)
	CmdNext          -> EvtAnswerSubmitted -> [EvtHintCollapsed] -> EvtProblemAdvanced
	                 -> on the last problem: EvtAnswerSubmitted -> EvtSessionFinishing
	CmdToggleHint    -> EvtHintRequested | EvtHintCollapsed
	CmdFinishOutcome -> EvtSessionFinished
*/

type Command struct {
	Type CommandType
	Code string
	Err  error // CmdFinishOutcome only
}

type EventType string

const (
	EvtAnswerSubmitted  EventType = "AnswerSubmitted"
	EvtProblemAdvanced  EventType = "ProblemAdvanced"
	EvtHintRequested    EventType = "HintRequested"
	EvtHintCollapsed    EventType = "HintCollapsed"
	EvtSessionFinishing EventType = "SessionFinishing"
	EvtSessionFinished  EventType = "SessionFinished"
)

type Event struct {
	Type       EventType
	QuestionID int
	Code       string
	Prompt     string
	HintGen    int
	Err        error
}

func Apply(s State, cmd Command) ([]Event, State, error) {
	switch s.Phase {
	case PhaseDone:
		return nil, s, ErrSessionFinished
	case PhaseFinishing:
		if cmd.Type != CmdFinishOutcome {
			return nil, s, ErrFinishing
		}
	}

	newState := s

	switch cmd.Type {
	case CmdEdit:
		newState.Code = cmd.Code
		return nil, newState, nil

	case CmdNext:
		events := []Event{
			{Type: EvtAnswerSubmitted, QuestionID: s.Current, Code: s.Code},
		}

		// Last problem: hand over to the finish notification.
		if s.Current >= ProblemCount {
			newState.Phase = PhaseFinishing
			newState.HintOpen = false
			events = append(events, Event{Type: EvtSessionFinishing, QuestionID: s.Current})
			return events, newState, nil
		}

		if s.HintOpen {
			events = append(events, Event{Type: EvtHintCollapsed})
			newState.HintOpen = false
		}
		newState.Current = s.Current + 1
		newState.Code = DefaultCode
		events = append(events, Event{Type: EvtProblemAdvanced, QuestionID: newState.Current})
		return events, newState, nil

	case CmdToggleHint:
		if !s.AllowHint {
			return nil, s, ErrHintNotAllowed
		}
		if s.HintOpen {
			newState.HintOpen = false
			return []Event{{Type: EvtHintCollapsed}}, newState, nil
		}

		newState.HintOpen = true
		newState.HintGen = s.HintGen + 1
		events := []Event{{
			Type:       EvtHintRequested,
			QuestionID: s.Current,
			Code:       FormatCode(s.Code),
			Prompt:     currentProblem(s).Prompt,
			HintGen:    newState.HintGen,
		}}
		return events, newState, nil

	case CmdFinishOutcome:
		if s.Phase != PhaseFinishing {
			return nil, s, ErrNotFinishing
		}
		newState.Phase = PhaseDone
		newState.FinishErr = cmd.Err
		return []Event{{Type: EvtSessionFinished, QuestionID: s.Current, Err: cmd.Err}}, newState, nil

	default:
		return nil, s, ErrUnsupportedCommand
	}
}
