package apperrors

import (
	"fmt"
	"strings"
)

// ErrorKind names a reconciliation error category so API clients can branch on it.
type ErrorKind string

const (
	KindImportRow       ErrorKind = "IMPORT_ROW"
	KindAlreadyPaired   ErrorKind = "ALREADY_PAIRED"
	KindPairNotFound    ErrorKind = "PAIR_NOT_FOUND"
	KindNotDiscrepancy  ErrorKind = "NOT_DISCREPANCY"
	KindUnresolvedItems ErrorKind = "UNRESOLVED_ITEMS"
	KindSessionClosed   ErrorKind = "SESSION_CLOSED"
	KindConfiguration   ErrorKind = "CONFIGURATION"
	KindUnknownRecord   ErrorKind = "UNKNOWN_RECORD"
)

// KindedError is implemented by every typed reconciliation error.
// IDs returns the record or pair ids the operator needs to look at.
type KindedError interface {
	error
	Kind() ErrorKind
	IDs() []string
}

// ImportRowError reports a single raw row that could not be normalized.
type ImportRowError struct {
	Source string `json:"source"`
	Row    int    `json:"row"` // 1-based position in the import sequence
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (e *ImportRowError) Error() string {
	return fmt.Sprintf("%s row %d: invalid %s: %s", e.Source, e.Row, e.Field, e.Reason)
}

func (e *ImportRowError) Is(target error) bool { return target == ErrValidation }
func (e *ImportRowError) Kind() ErrorKind      { return KindImportRow }
func (e *ImportRowError) IDs() []string        { return nil }

// AlreadyPairedError is returned when a record taking part in a new pair is not UNMATCHED.
type AlreadyPairedError struct {
	RecordIDs []string
}

func (e *AlreadyPairedError) Error() string {
	return fmt.Sprintf("records already paired: %s", strings.Join(e.RecordIDs, ", "))
}

func (e *AlreadyPairedError) Is(target error) bool { return target == ErrConflict }
func (e *AlreadyPairedError) Kind() ErrorKind      { return KindAlreadyPaired }
func (e *AlreadyPairedError) IDs() []string        { return e.RecordIDs }

// UnknownRecordError is returned when a pairing references a record id the session does not hold,
// or holds on the wrong side.
type UnknownRecordError struct {
	RecordID string
	Source   string
}

func (e *UnknownRecordError) Error() string {
	return fmt.Sprintf("unknown %s record %q", strings.ToLower(e.Source), e.RecordID)
}

func (e *UnknownRecordError) Is(target error) bool { return target == ErrNotFound }
func (e *UnknownRecordError) Kind() ErrorKind      { return KindUnknownRecord }
func (e *UnknownRecordError) IDs() []string        { return []string{e.RecordID} }

// PairNotFoundError is returned when a pair id is not part of the session.
type PairNotFoundError struct {
	PairID string
}

func (e *PairNotFoundError) Error() string {
	return fmt.Sprintf("pair %q not found", e.PairID)
}

func (e *PairNotFoundError) Is(target error) bool { return target == ErrNotFound }
func (e *PairNotFoundError) Kind() ErrorKind      { return KindPairNotFound }
func (e *PairNotFoundError) IDs() []string        { return []string{e.PairID} }

// NotDiscrepancyError is returned when a resolver action targets a pair that is not a discrepancy.
type NotDiscrepancyError struct {
	PairID string
	Status string
}

func (e *NotDiscrepancyError) Error() string {
	return fmt.Sprintf("pair %q has status %s, expected DISCREPANCY", e.PairID, e.Status)
}

func (e *NotDiscrepancyError) Is(target error) bool { return target == ErrConflict }
func (e *NotDiscrepancyError) Kind() ErrorKind      { return KindNotDiscrepancy }
func (e *NotDiscrepancyError) IDs() []string        { return []string{e.PairID} }

// UnresolvedItemsError blocks confirmation while records are unmatched or discrepancies are unresolved.
type UnresolvedItemsError struct {
	UnmatchedRecordIDs []string
	UnresolvedPairIDs  []string
}

func (e *UnresolvedItemsError) Error() string {
	return fmt.Sprintf("cannot confirm: %d unmatched records, %d unresolved discrepancies",
		len(e.UnmatchedRecordIDs), len(e.UnresolvedPairIDs))
}

func (e *UnresolvedItemsError) Is(target error) bool { return target == ErrConflict }
func (e *UnresolvedItemsError) Kind() ErrorKind      { return KindUnresolvedItems }

func (e *UnresolvedItemsError) IDs() []string {
	ids := make([]string, 0, len(e.UnmatchedRecordIDs)+len(e.UnresolvedPairIDs))
	ids = append(ids, e.UnmatchedRecordIDs...)
	return append(ids, e.UnresolvedPairIDs...)
}

// SessionClosedError is returned for any mutation of a confirmed session.
type SessionClosedError struct {
	SessionID string
}

func (e *SessionClosedError) Error() string {
	return fmt.Sprintf("reconciliation session %q is confirmed and can no longer be modified", e.SessionID)
}

func (e *SessionClosedError) Is(target error) bool { return target == ErrConflict }
func (e *SessionClosedError) Kind() ErrorKind      { return KindSessionClosed }
func (e *SessionClosedError) IDs() []string        { return []string{e.SessionID} }

// ConfigurationError reports invalid matcher tolerances or windows.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid matcher configuration: %s %s", e.Field, e.Reason)
}

func (e *ConfigurationError) Is(target error) bool { return target == ErrValidation }
func (e *ConfigurationError) Kind() ErrorKind      { return KindConfiguration }
func (e *ConfigurationError) IDs() []string        { return nil }
