package pebble

import "errors"

var (
	ErrClosed    = errors.New("store closed")
	ErrNotFound  = errors.New("key not found")
	ErrBatchDone = errors.New("batch already committed or closed")
)
