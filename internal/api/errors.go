package api

import (
	"errors"
	"fmt"
)

var (
	ErrDuplicateCode  = errors.New("room code already in use")
	ErrRoomNotFound   = errors.New("room not found")
	ErrWrongPassword  = errors.New("wrong room password")
	ErrAlreadyStarted = errors.New("room already started")
	ErrServer         = errors.New("backend error")
	ErrBadAnalysis    = errors.New("malformed analysis")
)

// StatusError is a non-2xx response. It unwraps to the sentinel the endpoint
// maps the status to, or ErrServer.
type StatusError struct {
	Op     string
	Status int
	Body   string
	kind   error
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Op, e.Status, e.Body)
}

func (e *StatusError) Unwrap() error { return e.kind }

type statusMap map[int]error

var (
	createStatuses = statusMap{400: ErrDuplicateCode, 409: ErrDuplicateCode}
	enterStatuses  = statusMap{404: ErrRoomNotFound, 403: ErrWrongPassword, 400: ErrAlreadyStarted}
)

func (m statusMap) kind(status int) error {
	if err, ok := m[status]; ok {
		return err
	}
	return ErrServer
}
