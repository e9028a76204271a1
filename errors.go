package main

import "errors"

var (
	// ErrRegistryFull is returned when the registry already holds MaxConnections peers
	ErrRegistryFull = errors.New("maximum connections reached")
	// ErrDuplicateConnection is returned when a peer with the same IP and port is already connected
	ErrDuplicateConnection = errors.New("connection already exists")
	// ErrInvalidPosition is returned for a registry position outside [0, count)
	ErrInvalidPosition = errors.New("invalid registry position")
	// ErrInvalidID is returned for a user-facing connection id outside [1, count]
	ErrInvalidID = errors.New("invalid connection ID")
	// ErrConnectFailed wraps network errors from an outbound connect
	ErrConnectFailed = errors.New("connect failed")
	// ErrSendFailed wraps network errors from a write to a peer
	ErrSendFailed = errors.New("send failed")
	// ErrReservedPayload is returned when a chat message equals the disconnect sentinel
	ErrReservedPayload = errors.New("message is reserved for disconnect signalling")
)
