package domain

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindInvalidLink  ErrorKind = "invalid_link"
	KindNotFound     ErrorKind = "not_found"
	KindConfirmation ErrorKind = "confirmation"
	KindNetwork      ErrorKind = "network"
	KindDisk         ErrorKind = "disk"
	KindHTTP         ErrorKind = "http"
	KindUnknown      ErrorKind = "unknown"
)

var (
	ErrUnrecognizedLink = errors.New("unrecognized link format")
	ErrNotFound         = errors.New("file not found or permission denied")
	ErrNoConfirmToken   = errors.New("confirmation token not found")
)

// TaskError is the failure of a single download task.
type TaskError struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *TaskError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *TaskError) Unwrap() error {
	return e.Err
}

func WrapError(kind ErrorKind, msg string, err error) error {
	if err == nil {
		return nil
	}
	return &TaskError{Kind: kind, Msg: msg, Err: err}
}

// KindOf returns the kind of the outermost TaskError in err's chain.
func KindOf(err error) ErrorKind {
	var te *TaskError
	if errors.As(err, &te) {
		return te.Kind
	}
	return KindUnknown
}
