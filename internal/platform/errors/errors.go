// Package errors defines the structured error type shared by the
// domain and service layers, plus its conversion to gRPC statuses.
package errors

import (
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/status"
)

// Domain identifies this module in errdetails.ErrorInfo payloads.
const Domain = "github.com/louisbranch/brink.zone"

// Error carries a machine-readable code alongside an internal message.
// Metadata feeds the i18n message templates; Cause preserves the
// underlying error for chain traversal.
type Error struct {
	Code     Code
	Message  string
	Metadata map[string]string
	Cause    error
}

// New returns an error with only a code and an internal message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithMetadata returns an error whose metadata feeds message templates.
func WithMetadata(code Code, message string, metadata map[string]string) *Error {
	return &Error{Code: code, Message: message, Metadata: metadata}
}

// Wrap returns an error that records cause for errors.Is/As traversal.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

func (e *Error) Error() string { return e.Message }

// Unwrap exposes the cause to the errors package chain helpers.
func (e *Error) Unwrap() error { return e.Cause }

// Is matches two domain errors by code, ignoring message and metadata.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && e.Code == t.Code
}

// ToGRPCStatus builds a gRPC status carrying the internal message plus
// an ErrorInfo detail (code and metadata) and a LocalizedMessage detail
// with the user-facing text.
func (e *Error) ToGRPCStatus(locale string, userMessage string) error {
	st := status.New(e.Code.GRPCCode(), e.Message)

	detailed, err := st.WithDetails(
		&errdetails.ErrorInfo{
			Reason:   string(e.Code),
			Domain:   Domain,
			Metadata: e.Metadata,
		},
		&errdetails.LocalizedMessage{
			Locale:  locale,
			Message: userMessage,
		},
	)
	if err != nil {
		// Details could not be attached; the bare status still carries
		// the right code.
		return st.Err()
	}
	return detailed.Err()
}
