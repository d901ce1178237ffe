// Package immerr defines ImmAgent's flat error taxonomy. Each kind carries
// a structured payload rather than just a message, so callers can recover
// the failing field, the missing id's kind, or the upstream cause with
// errors.As instead of parsing strings.
package immerr

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ValidationError reports a malformed input caught before any I/O.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: field %q: %s", e.Field, e.Message)
}

// NewValidation constructs a ValidationError.
func NewValidation(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// AssetKind names which table an AssetNotFoundError refers to.
type AssetKind string

const (
	AssetKindAgent        AssetKind = "agent"
	AssetKindConversation AssetKind = "conversation"
	AssetKindMessage      AssetKind = "message"
	AssetKindSystemPrompt AssetKind = "system_prompt"
)

// AssetNotFoundError reports that id does not resolve to a stored value of
// the given kind.
type AssetNotFoundError struct {
	Kind AssetKind
	ID   uuid.UUID
}

func (e *AssetNotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// NewAssetNotFound constructs an AssetNotFoundError for the given kind.
func NewAssetNotFound(kind AssetKind, id uuid.UUID) error {
	return &AssetNotFoundError{Kind: kind, ID: id}
}

// IsNotFound reports whether err is (or wraps) an AssetNotFoundError,
// optionally of a specific kind. Pass "" to match any kind.
func IsNotFound(err error, kind AssetKind) bool {
	var nfErr *AssetNotFoundError
	if !errors.As(err, &nfErr) {
		return false
	}
	return kind == "" || nfErr.Kind == kind
}

// LLMErrorKind classifies whether an LLM failure is worth retrying.
type LLMErrorKind string

const (
	LLMErrorTransient LLMErrorKind = "transient"
	LLMErrorPermanent LLMErrorKind = "permanent"
)

// LLMError reports a failure from the completion provider, after any
// retries the adapter was configured to attempt have been exhausted.
type LLMError struct {
	Kind  LLMErrorKind
	Cause error
}

func (e *LLMError) Error() string {
	return fmt.Sprintf("llm error (%s): %v", e.Kind, e.Cause)
}

func (e *LLMError) Unwrap() error { return e.Cause }

// NewLLMError constructs an LLMError.
func NewLLMError(kind LLMErrorKind, cause error) error {
	return &LLMError{Kind: kind, Cause: cause}
}

// ToolExecutionError reports that a single tool invocation failed. The
// advance engine catches this per call and folds it into a textual tool
// result; it never reaches an advance() caller.
type ToolExecutionError struct {
	Tool  string
	Cause error
}

func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("tool %q execution failed: %v", e.Tool, e.Cause)
}

func (e *ToolExecutionError) Unwrap() error { return e.Cause }

// NewToolExecutionError constructs a ToolExecutionError.
func NewToolExecutionError(tool string, cause error) error {
	return &ToolExecutionError{Tool: tool, Cause: cause}
}

// IntegrityError reports a relational constraint violation that escaped
// validation (e.g. a foreign key pointing nowhere, a duplicate primary key
// insert outside the ON CONFLICT DO NOTHING path).
type IntegrityError struct {
	Detail string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity error: %s", e.Detail)
}

// NewIntegrityError constructs an IntegrityError.
func NewIntegrityError(detail string) error {
	return &IntegrityError{Detail: detail}
}

// ErrPoolExhausted reports that a connection could not be acquired within
// the driver's own timeout.
var ErrPoolExhausted = fmt.Errorf("pool exhausted: connection acquisition timed out")
