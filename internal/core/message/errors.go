package message

import "errors"

var (
	ErrUnsupportedMessage = errors.New("unsupported message value")
	ErrRemoveUnknownID    = errors.New("attempting to delete a message with an ID that doesn't exist")
	ErrInvalidRole        = errors.New("invalid message role")
)
