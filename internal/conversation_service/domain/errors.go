package domain

import "errors"

var (
	// ErrNotFound indicates that a requested resource was not found.
	ErrNotFound = errors.New("resource not found")
	// ErrPersistence indicates the durable store rejected or could not take a write.
	ErrPersistence = errors.New("persistence failure")
	// ErrMalformedDirective indicates a scheduling tool call whose arguments failed validation.
	ErrMalformedDirective = errors.New("malformed scheduling directive")
	// ErrSendFailed indicates the delivery channel did not accept a message.
	ErrSendFailed = errors.New("message send failed")
)
