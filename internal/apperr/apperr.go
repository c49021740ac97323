// Package apperr defines the error taxonomy shared by the vault controllers.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies where a failure originated.
type Kind int

const (
	KindAuth Kind = iota + 1
	KindFetch
	KindUpload
	KindAnalysis
	KindRename
	KindPrecondition
	KindChat
	KindDelete
	KindAccount
	KindAdmin
)

var kindNames = map[Kind]string{
	KindAuth:         "auth",
	KindFetch:        "fetch",
	KindUpload:       "upload",
	KindAnalysis:     "analysis",
	KindRename:       "rename",
	KindPrecondition: "precondition",
	KindChat:         "chat",
	KindDelete:       "delete",
	KindAccount:      "account",
	KindAdmin:        "admin",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error carries the failing operation and its cause.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// Sentinels for errors.Is checks against a kind.
var (
	ErrAuth         = &Error{Kind: KindAuth}
	ErrFetch        = &Error{Kind: KindFetch}
	ErrUpload       = &Error{Kind: KindUpload}
	ErrAnalysis     = &Error{Kind: KindAnalysis}
	ErrRename       = &Error{Kind: KindRename}
	ErrPrecondition = &Error{Kind: KindPrecondition}
	ErrChat         = &Error{Kind: KindChat}
	ErrDelete       = &Error{Kind: KindDelete}
	ErrAccount      = &Error{Kind: KindAccount}
	ErrAdmin        = &Error{Kind: KindAdmin}
)

// New wraps err under the given kind and operation.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Precondition builds a local validation failure; no network call was made.
func Precondition(op, msg string) *Error {
	return &Error{Kind: KindPrecondition, Op: op, Err: errors.New(msg)}
}

func (e *Error) Error() string {
	switch {
	case e.Op == "" && e.Err == nil:
		return e.Kind.String() + " error"
	case e.Err == nil:
		return fmt.Sprintf("%s: %s error", e.Op, e.Kind)
	case e.Op == "":
		return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches bare kind sentinels such as ErrPrecondition.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Op == "" && t.Err == nil {
		return e.Kind == t.Kind
	}
	return e == t
}

// KindOf returns the kind of the first *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
