package services

import (
	"errors"
	"fmt"

	"github.com/akshitk26/gamepulse/internal/store"
)

// Kind classifies an error for propagation and presentation.
type Kind string

const (
	KindAuth       Kind = "auth"
	KindNotFound   Kind = "not_found"
	KindCapacity   Kind = "capacity"
	KindState      Kind = "state"
	KindConflict   Kind = "conflict"
	KindTransient  Kind = "transient_io"
	KindValidation Kind = "validation"
)

// Code is a machine-readable error code.
type Code string

const (
	CodeNotAuthenticated  Code = "NOT_AUTHENTICATED"
	CodeNotOwner          Code = "NOT_OWNER"
	CodeLobbyNotFound     Code = "LOBBY_NOT_FOUND"
	CodeMemberNotFound    Code = "MEMBER_NOT_FOUND"
	CodeLobbyFull         Code = "LOBBY_FULL"
	CodeLobbyClosed       Code = "LOBBY_CLOSED"
	CodeInvalidTransition Code = "INVALID_TRANSITION"
	CodeNoActiveQuestion  Code = "NO_ACTIVE_QUESTION"
	CodeAlreadyAnswered   Code = "ALREADY_ANSWERED"
	CodeNotSettled        Code = "NOT_SETTLED"
	CodeConcurrentWrite   Code = "CONCURRENT_WRITE"
	CodeUpdateFailed      Code = "UPDATE_FAILED"
	CodeStoreUnavailable  Code = "STORE_UNAVAILABLE"
	CodeInvalidInput      Code = "INVALID_INPUT"
)

type Error struct {
	Kind    Kind
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by code, so sentinel errors below work with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

func newError(kind Kind, code Code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

var (
	ErrNotAuthenticated  = newError(KindAuth, CodeNotAuthenticated, "you need to sign in first")
	ErrNotOwner          = newError(KindAuth, CodeNotOwner, "only the lobby host can do that")
	ErrLobbyNotFound     = newError(KindNotFound, CodeLobbyNotFound, "lobby not found")
	ErrMemberNotFound    = newError(KindNotFound, CodeMemberNotFound, "you are not a member of this lobby")
	ErrLobbyFull         = newError(KindCapacity, CodeLobbyFull, "lobby is full")
	ErrLobbyClosed       = newError(KindState, CodeLobbyClosed, "lobby is closed")
	ErrInvalidTransition = newError(KindState, CodeInvalidTransition, "that action is not allowed in the lobby's current state")
	ErrNoActiveQuestion  = newError(KindState, CodeNoActiveQuestion, "there is no active question to answer")
	ErrAlreadyAnswered   = newError(KindState, CodeAlreadyAnswered, "you already answered this question")
	ErrNotSettled        = newError(KindState, CodeNotSettled, "lobby has not been settled yet")
	ErrConcurrentWrite   = newError(KindConflict, CodeConcurrentWrite, "lobby changed while updating, try again")
)

// withErr returns a copy of a sentinel carrying the underlying cause.
func withErr(sentinel *Error, err error) *Error {
	cp := *sentinel
	cp.Err = err
	return &cp
}

func invalidInput(msg string, err error) *Error {
	return &Error{Kind: KindValidation, Code: CodeInvalidInput, Message: msg, Err: err}
}

// storeError maps a store failure onto the taxonomy. notFound is used for
// store.ErrNotFound since only the caller knows what was missing.
func storeError(err error, notFound *Error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return notFound
	case errors.Is(err, store.ErrConflict):
		return withErr(ErrConcurrentWrite, err)
	case errors.Is(err, store.ErrCapacity):
		return ErrLobbyFull
	case errors.Is(err, store.ErrClosed):
		return ErrLobbyClosed
	}
	return &Error{Kind: KindTransient, Code: CodeStoreUnavailable, Message: "storage is unavailable, try again", Err: err}
}

// KindOf returns the kind of err, KindTransient for unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindTransient
}

// Message returns a human-readable message for err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "something went wrong, try again"
}

// CodeOf returns the machine code of err, empty for unclassified errors.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

var codeKinds = map[Code]Kind{
	CodeNotAuthenticated:  KindAuth,
	CodeNotOwner:          KindAuth,
	CodeLobbyNotFound:     KindNotFound,
	CodeMemberNotFound:    KindNotFound,
	CodeLobbyFull:         KindCapacity,
	CodeLobbyClosed:       KindState,
	CodeInvalidTransition: KindState,
	CodeNoActiveQuestion:  KindState,
	CodeAlreadyAnswered:   KindState,
	CodeNotSettled:        KindState,
	CodeConcurrentWrite:   KindConflict,
	CodeUpdateFailed:      KindTransient,
	CodeStoreUnavailable:  KindTransient,
	CodeInvalidInput:      KindValidation,
}

// FromCode rebuilds an error received over the wire, so errors.Is keeps
// working against the sentinels on the client side.
func FromCode(code Code, msg string) *Error {
	kind, ok := codeKinds[code]
	if !ok {
		kind = KindTransient
	}
	return &Error{Kind: kind, Code: code, Message: msg}
}
