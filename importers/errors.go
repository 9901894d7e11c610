// bblocks-data-importers - Importers for international development datasets
// Copyright 2026 The ONE Campaign
// SPDX-License-Identifier: MIT
// https://github.com/ONEcampaign/bblocks-data-importers-sub000

package importers

import "fmt"

// The error taxonomy distinguishes failure classes callers react to
// differently. Transport failures and corrupt downloads (ExtractionError)
// may be worth retrying; structural surprises in a source document
// (ParseError) or archive (NotFoundError, FormattingError) are not.
// Importers never retry internally: archives run to gigabytes, so retry
// policy belongs to the caller.

// ExtractionError reports a network/transport failure or a corrupt response
// body (e.g. a download that is not a well-formed archive).
type ExtractionError struct {
	Source string // URL or resource being fetched
	Msg    string
	Err    error
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extraction failed for %s: %s: %v", e.Source, e.Msg, e.Err)
	}
	return fmt.Sprintf("extraction failed for %s: %s", e.Source, e.Msg)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// ParseError reports a fetched document that is missing expected structure,
// such as the version-listing page lacking a known section.
type ParseError struct {
	Source string
	Msg    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error in %s: %s", e.Source, e.Msg)
}

// NotFoundError reports an expected member or file absent from an
// otherwise-valid archive or directory.
type NotFoundError struct {
	Name string // member or file that was expected
	Msg  string
}

func (e *NotFoundError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("%s not found: %s", e.Name, e.Msg)
	}
	return fmt.Sprintf("%s not found", e.Name)
}

// FormattingError reports a file that was located and read but yielded no
// usable records.
type FormattingError struct {
	Source string
	Msg    string
}

func (e *FormattingError) Error() string {
	return fmt.Sprintf("formatting error in %s: %s", e.Source, e.Msg)
}

// InvalidRequestError reports a caller-supplied filter, version or scheme
// selector that is invalid. The message names the offending input.
type InvalidRequestError struct {
	Msg string
}

func (e *InvalidRequestError) Error() string {
	return fmt.Sprintf("invalid request: %s", e.Msg)
}

// ConfigurationError reports an inconsistency in discovered source state,
// such as a version catalog with no release marked latest.
type ConfigurationError struct {
	Msg string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s", e.Msg)
}

// NewInvalidRequestError builds an InvalidRequestError with a formatted
// message.
func NewInvalidRequestError(format string, args ...any) *InvalidRequestError {
	return &InvalidRequestError{Msg: fmt.Sprintf(format, args...)}
}
