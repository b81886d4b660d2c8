package consensus

import (
	"errors"
	"fmt"
)

type ErrorCode string

const (
	MINT_ERR_DECODE                  ErrorCode = "MINT_ERR_DECODE"
	MINT_ERR_IDENTITY_MISMATCH       ErrorCode = "MINT_ERR_IDENTITY_MISMATCH"
	MINT_ERR_NOT_INCLUDED            ErrorCode = "MINT_ERR_NOT_INCLUDED"
	MINT_ERR_INSUFFICIENT_WORK       ErrorCode = "MINT_ERR_INSUFFICIENT_WORK"
	MINT_ERR_MALFORMED_NONCE         ErrorCode = "MINT_ERR_MALFORMED_NONCE"
	MINT_ERR_SCHEMA                  ErrorCode = "MINT_ERR_SCHEMA"
	MINT_ERR_AMOUNT_MISMATCH         ErrorCode = "MINT_ERR_AMOUNT_MISMATCH"
	MINT_ERR_UNEXPECTED_SIDE_CHANNEL ErrorCode = "MINT_ERR_UNEXPECTED_SIDE_CHANNEL"

	// MINT_ERR_UNKNOWN_TAG is a host configuration error, not a property of
	// the submitted transaction.
	MINT_ERR_UNKNOWN_TAG ErrorCode = "MINT_ERR_UNKNOWN_TAG"
)

type MintError struct {
	Code ErrorCode
	Msg  string
}

func (e *MintError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Msg == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

func minterr(code ErrorCode, msg string) error {
	return &MintError{Code: code, Msg: msg}
}

func minterrf(code ErrorCode, format string, args ...any) error {
	return &MintError{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// CodeOf returns the ErrorCode carried by err, looking through wrapping.
func CodeOf(err error) (ErrorCode, bool) {
	var me *MintError
	if errors.As(err, &me) && me != nil {
		return me.Code, true
	}
	return "", false
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	got, ok := CodeOf(err)
	return ok && got == code
}
