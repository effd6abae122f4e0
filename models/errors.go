package models

import (
	"errors"
	"fmt"
)

// Error codes used in API responses, evaluation reports and internal error
// handling.
const (
	ErrCodeFixtureIntegrity = "FIXTURE_INTEGRITY"
	ErrCodeExtractionMiss   = "EXTRACTION_MISS"
	ErrCodeCanonicalization = "CANONICALIZATION"
	ErrCodeInvalidInput     = "INVALID_INPUT"
	ErrCodeRateLimited      = "RATE_LIMITED"
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeInternal         = "INTERNAL_ERROR"
)

// ErrorDetail is the structured error in API responses and reports.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ExtractError is the internal error type carrying an error code.
// It implements the error interface and supports error wrapping via Unwrap.
type ExtractError struct {
	Code    string
	Message string
	Err     error // wrapped original error
}

func (e *ExtractError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ExtractError) Unwrap() error {
	return e.Err
}

// NewExtractError creates a new ExtractError.
func NewExtractError(code, message string, err error) *ExtractError {
	return &ExtractError{Code: code, Message: message, Err: err}
}

// ToDetail converts an internal error to an API-facing ErrorDetail.
func (e *ExtractError) ToDetail() *ErrorDetail {
	return &ErrorDetail{Code: e.Code, Message: e.Message}
}

// FixtureIntegrityError reports a document/geometry mismatch or a missing
// expected-value fixture.
func FixtureIntegrityError(format string, args ...any) *ExtractError {
	return NewExtractError(ErrCodeFixtureIntegrity, fmt.Sprintf(format, args...), nil)
}

// CanonicalizationError reports a value that could not be brought into the
// comparable form of its feature.
func CanonicalizationError(feature Feature, raw string, err error) *ExtractError {
	return NewExtractError(ErrCodeCanonicalization,
		fmt.Sprintf("cannot canonicalize %s value %q", feature, raw), err)
}

// ErrExtractionMiss is returned when a ruleset selects no candidate.
var ErrExtractionMiss = NewExtractError(ErrCodeExtractionMiss, "no candidate selected", nil)

// CodeOf returns the ExtractError code found in err's chain, or
// ErrCodeInternal.
func CodeOf(err error) string {
	var ee *ExtractError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return ErrCodeInternal
}

// IsFixtureIntegrity reports whether err is a fixture integrity error.
func IsFixtureIntegrity(err error) bool {
	return err != nil && CodeOf(err) == ErrCodeFixtureIntegrity
}

// IsExtractionMiss reports whether err is an extraction miss.
func IsExtractionMiss(err error) bool {
	return err != nil && CodeOf(err) == ErrCodeExtractionMiss
}

// IsCanonicalization reports whether err is a canonicalization error.
func IsCanonicalization(err error) bool {
	return err != nil && CodeOf(err) == ErrCodeCanonicalization
}
