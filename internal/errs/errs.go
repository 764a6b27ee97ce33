// Package errs defines the error taxonomy shared by every subsystem.
//
//   - ValidationError: a rejected request (insufficient funds, bad amount,
//     unmet unlock requirement). State is guaranteed unmodified.
//   - IntegrityError: a stored record failed its checksum. The record is
//     unusable; in-memory state is untouched.
//   - TransientError: external storage is unavailable. Callers report it and
//     carry on with the in-memory state as the authority.
package errs

import (
	"errors"
	"fmt"
)

// Code categorizes a ValidationError. The string values are part of the
// produced interface and must stay stable.
type Code string

const (
	CodeNotFound              Code = "not_found"
	CodeMaxLevelReached       Code = "max_level_reached"
	CodeRequirementsNotMet    Code = "requirements_not_met"
	CodeInsufficientFunds     Code = "insufficient_funds"
	CodeInsufficientResources Code = "insufficient_resources"
	CodeInvalidAmount         Code = "invalid_amount"
	CodeInvalidBundle         Code = "invalid_bundle"
)

// ValidationError reports a request that was rejected before any mutation.
type ValidationError struct {
	Code    Code
	Message string
	Details map[string]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Validation creates a ValidationError with an optional set of key/value
// detail pairs.
func Validation(code Code, message string, kv ...string) *ValidationError {
	e := &ValidationError{Code: code, Message: message}
	if len(kv) > 0 {
		e.Details = make(map[string]string, len(kv)/2)
		for i := 0; i+1 < len(kv); i += 2 {
			e.Details[kv[i]] = kv[i+1]
		}
	}
	return e
}

// IntegrityError reports a record whose checksum does not match its content.
type IntegrityError struct {
	RecordID string
	Want     string
	Got      string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity check failed for record %s: checksum mismatch", e.RecordID)
}

// TransientError wraps a storage failure that may succeed on retry.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: storage unavailable: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// Transient wraps err for op. A nil err yields nil.
func Transient(op string, err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Op: op, Err: err}
}

// IsValidation reports whether err is a ValidationError.
// Uses errors.As to handle wrapped errors.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// CodeOf returns the ValidationError code of err, or "".
func CodeOf(err error) Code {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Code
	}
	return ""
}

// IsIntegrity reports whether err is an IntegrityError.
func IsIntegrity(err error) bool {
	var ie *IntegrityError
	return errors.As(err, &ie)
}

// IsTransient reports whether err is a TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
