// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package ledger

import "errors"

var (
	// ErrNilDB is returned when a store is created without a database
	// handle.
	ErrNilDB = errors.New("nil database")

	// ErrNotFound is returned when a requested round is not recorded.
	ErrNotFound = errors.New("round not found")

	// ErrDuplicateRound is returned when a round is recorded twice.
	ErrDuplicateRound = errors.New("round already recorded")

	// ErrMissingRoundID is returned when a round without an id is
	// recorded.
	ErrMissingRoundID = errors.New("missing round id")
)

// ErrorCode classifies the failures reported by a Store.
type ErrorCode int

const (
	// ErrDatabase wraps a failure of the underlying database.
	ErrDatabase ErrorCode = iota

	// ErrRoundNotFound means no round with the requested id is recorded.
	ErrRoundNotFound

	// ErrRoundExists means a round with the same id is already recorded.
	ErrRoundExists

	// ErrInvalidRecord means the record failed validation and was not
	// written.
	ErrInvalidRecord
)

var errorCodeNames = map[ErrorCode]string{
	ErrDatabase:      "ErrDatabase",
	ErrRoundNotFound: "ErrRoundNotFound",
	ErrRoundExists:   "ErrRoundExists",
	ErrInvalidRecord: "ErrInvalidRecord",
}

func (c ErrorCode) String() string {
	if name, ok := errorCodeNames[c]; ok {
		return name
	}

	return "unknown error code"
}

// Error is returned by every Store operation. Code tells callers what went
// wrong without matching on the message; Err, when set, is the cause.
type Error struct {
	Code ErrorCode
	Desc string
	Err  error
}

func (e Error) Error() string {
	if e.Err == nil {
		return e.Desc
	}

	return e.Desc + ": " + e.Err.Error()
}

func (e Error) Unwrap() error {
	return e.Err
}

func newError(code ErrorCode, desc string, cause error) Error {
	return Error{Code: code, Desc: desc, Err: cause}
}

// IsError reports whether any error in err's chain is a ledger Error
// carrying code.
func IsError(err error, code ErrorCode) bool {
	var ledgerErr Error

	return errors.As(err, &ledgerErr) && ledgerErr.Code == code
}
