// Package dberrors collects the sentinel errors shared across the store's
// packages, so callers can errors.Is/errors.As against a stable set of
// values instead of matching on error strings.
package dberrors

import "errors"

var (
	ErrNotFound        = errors.New("lsmdb: not found")
	ErrClosed          = errors.New("lsmdb: closed")
	ErrInvalidArgument = errors.New("lsmdb: invalid argument")
	ErrCorruptWAL      = errors.New("lsmdb: corrupt write-ahead log")
	ErrCorruptSSTable  = errors.New("lsmdb: corrupt sstable")
	ErrFlushFailed     = errors.New("lsmdb: flush failed")
)
