package domain

import "errors"

var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrNoImage          = errors.New("no image bound to session")
	ErrInferenceFailed  = errors.New("inference request failed")
	ErrNotConfigured    = errors.New("inference endpoint not configured")
	ErrStorage          = errors.New("storage error")
	ErrTurnInProgress   = errors.New("previous request still processing")
	ErrUnknownMode      = errors.New("unknown protocol mode")
	ErrEmptyInput       = errors.New("empty input")
	ErrUnsupportedImage = errors.New("unsupported image")
	ErrInvalidRole      = errors.New("invalid message role")
)
