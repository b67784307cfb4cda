package model

import "errors"

var (
	ErrTokenRevoked  = errors.New("refresh token revoked")
	ErrTokenExpired  = errors.New("refresh token expired")
	ErrTokenMismatch = errors.New("refresh token mismatch")
	// ErrRotationConflict is returned by the ledger when the presented token
	// is no longer the current one of its family.
	ErrRotationConflict = errors.New("refresh token already rotated")
)
