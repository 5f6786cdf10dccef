package tree

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies failures of tree operations.
type Kind string

const (
	KindNotFound         Kind = "NotFound"
	KindInvalidOperation Kind = "InvalidOperation"
	KindPartialFailure   Kind = "PartialFailure"
)

// ErrCycle marks an InvalidOperation caused by a move that would make a node
// its own ancestor.
var ErrCycle = errors.New("move would create a cycle")

type Error struct {
	Kind    Kind
	Op      string
	ID      string
	Message string
	// Remaining lists ids still stored after a failed cascading delete.
	Remaining []string
	// Removed lists ids a failed cascading delete did take out of the store.
	Removed []string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(e.Op)
	b.WriteString(": ")
	b.WriteString(string(e.Kind))
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.ID != "" {
		fmt.Fprintf(&b, " (node %s)", e.ID)
	}
	if len(e.Remaining) > 0 {
		fmt.Fprintf(&b, " remaining=%d", len(e.Remaining))
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf reports the kind of a tree error anywhere in err's chain.
func KindOf(err error) (Kind, bool) {
	var treeErr *Error
	if errors.As(err, &treeErr) {
		return treeErr.Kind, true
	}
	return "", false
}

func IsNotFound(err error) bool {
	kind, ok := KindOf(err)
	return ok && kind == KindNotFound
}

func IsInvalid(err error) bool {
	kind, ok := KindOf(err)
	return ok && kind == KindInvalidOperation
}

func IsPartial(err error) bool {
	kind, ok := KindOf(err)
	return ok && kind == KindPartialFailure
}

func notFound(op, id, message string) *Error {
	return &Error{Kind: KindNotFound, Op: op, ID: id, Message: message}
}

func invalid(op, id, message string, err error) *Error {
	return &Error{Kind: KindInvalidOperation, Op: op, ID: id, Message: message, Err: err}
}
