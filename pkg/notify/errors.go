package notify

import "errors"

var (
	ErrFailedToSend   = errors.New("notify: failed to send notice")
	ErrInvalidConfig  = errors.New("notify: invalid config")
	ErrInvalidNotice  = errors.New("notify: invalid notice")
	ErrUnknownKind    = errors.New("notify: unknown notice kind")
	ErrFailedToRender = errors.New("notify: failed to render notice")
)
