// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package errors carries categorized errors across the flowshell admin surface.
// The engine itself treats absence and bad input as no-ops; kinds only matter
// where an error has to be reported to a caller, over HTTP or in a log line.
package errors

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"slices"
)

// Kind is the category of an error.
type Kind int

const (
	KindUnknown Kind = iota
	KindInternal
	KindValidation
	KindNotFound
	KindUnavailable
)

var kindNames = map[Kind]string{
	KindInternal:    "internal",
	KindValidation:  "validation",
	KindNotFound:    "not_found",
	KindUnavailable: "unavailable",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// HTTPStatus is the response status the admin API uses for k.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Error is a categorized error. Attrs are structured context for logs and are
// never part of the message.
type Error struct {
	Kind  Kind
	Msg   string
	Err   error
	Attrs map[string]any
}

func (e *Error) Error() string {
	switch {
	case e.Err == nil:
		return e.Msg
	case e.Msg == "":
		return e.Err.Error()
	default:
		return e.Msg + ": " + e.Err.Error()
	}
}

func (e *Error) Unwrap() error { return e.Err }

// LogValue renders the error as a group so slog handlers print its kind and
// attributes next to the message.
func (e *Error) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("msg", e.Error()),
		slog.String("kind", e.Kind.String()),
	}
	for _, k := range slices.Sorted(maps.Keys(e.Attrs)) {
		attrs = append(attrs, slog.Any(k, e.Attrs[k]))
	}
	return slog.GroupValue(attrs...)
}

// New creates an error of the given kind.
func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

// Errorf creates an error of the given kind with a formatted message.
func Errorf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap categorizes err under kind with a message prefix. A nil err stays nil.
func Wrap(err error, kind Kind, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// Wrapf is Wrap with a formatted prefix.
func Wrapf(err error, kind Kind, format string, args ...any) error {
	return Wrap(err, kind, fmt.Sprintf(format, args...))
}

// Attr returns err with key=val attached. err itself is left untouched, so
// shared errors can be annotated per call site. An error that is not an
// *Error keeps its message and the kind found in its chain, or KindInternal.
func Attr(err error, key string, val any) error {
	if err == nil {
		return nil
	}

	var out Error
	if e, ok := err.(*Error); ok {
		out = *e
		out.Attrs = maps.Clone(e.Attrs)
	} else {
		out = Error{Kind: GetKind(err), Err: err}
		if out.Kind == KindUnknown {
			out.Kind = KindInternal
		}
	}
	if out.Attrs == nil {
		out.Attrs = make(map[string]any, 1)
	}
	out.Attrs[key] = val
	return &out
}

// GetKind returns the outermost kind in err's chain.
func GetKind(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether err is categorized as kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && GetKind(err) == kind
}

// GetAttributes merges the attributes of every *Error in the chain. Outer
// values win.
func GetAttributes(err error) map[string]any {
	attrs := make(map[string]any)
	for cur := err; cur != nil; cur = errors.Unwrap(cur) {
		e, ok := cur.(*Error)
		if !ok {
			continue
		}
		for k, v := range e.Attrs {
			if _, seen := attrs[k]; !seen {
				attrs[k] = v
			}
		}
	}
	return attrs
}

func Is(err, target error) bool     { return errors.Is(err, target) }
func As(err error, target any) bool { return errors.As(err, target) }
