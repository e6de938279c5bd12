package websocket

import "errors"

var (
	ErrConnectionClosed = errors.New("connection is closed")
	ErrInvalidJSON      = errors.New("failed to marshal message to JSON")
	ErrWriteBufferFull  = errors.New("connection write buffer is full")
	ErrNilConnection    = errors.New("connection cannot be nil")
)
