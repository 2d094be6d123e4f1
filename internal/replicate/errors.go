// Package replicate fans a multi-language replication request out into
// per-language translation jobs against the kv store.
package replicate

import (
	"errors"
	"fmt"
)

// Kind tags replication failures so callers can branch without matching
// message strings. Validation and TooManyTargets abort a batch before any job
// starts; the remaining kinds are fatal to a single job only.
type Kind string

const (
	KindValidation           Kind = "validation"
	KindTooManyTargets       Kind = "too_many_targets"
	KindNotFound             Kind = "not_found"
	KindInvalidLanguagePair  Kind = "invalid_language_pair"
	KindMissingSourceContent Kind = "missing_source_content"
	KindTranslationFailed    Kind = "translation_failed"
	KindExternal             Kind = "external"
	KindInternal             Kind = "internal"
)

// Error is a kind-tagged replication failure.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func wrapError(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// KindOf extracts the Kind of err, defaulting to KindInternal for untagged
// errors. A nil err has no kind.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var tagged *Error
	if errors.As(err, &tagged) {
		return tagged.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// IsBatchFatal reports whether err aborts the whole batch rather than a
// single job.
func IsBatchFatal(err error) bool {
	switch KindOf(err) {
	case KindValidation, KindTooManyTargets:
		return true
	default:
		return false
	}
}
