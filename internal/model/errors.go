package model

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyPrompt          = errors.New("prompt is empty")
	ErrAborted              = errors.New("generation aborted")
	ErrBusy                 = errors.New("generation already in progress")
	ErrNoCode               = errors.New("model returned no usable code")
	ErrEmptyStream          = errors.New("generation stream contained no frames")
	ErrNoExtraFix           = errors.New("no extra fix round available")
	ErrCheckpointOutOfRange = errors.New("checkpoint index out of range")
	ErrSessionDoesNotExist  = errors.New("session does not exist")
	ErrInvalidTransition    = errors.New("invalid state transition")
	ErrNothingToRetry       = errors.New("nothing to retry")
	ErrNoSandboxErrors      = errors.New("no sandbox errors recorded")
)

// GenerationError is a failure reported by the generation service, either as
// an HTTP error status or as an error frame inside the stream.
type GenerationError struct {
	StatusCode int
	Message    string
}

func (e *GenerationError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("generation failed with status %d: %s", e.StatusCode, e.Message)
	}
	return e.Message
}
