package usage

import "errors"

var (
	ErrInvalidConfig         = errors.New("usage: invalid configuration")
	ErrStorageUnavailable    = errors.New("usage: failed to measure storage")
	ErrGalleriesUnavailable  = errors.New("usage: failed to count galleries")
	ErrFailedToParseRedisURL = errors.New("usage: failed to parse redis connection string")
	ErrRedisNotReady         = errors.New("usage: redis did not become ready within the given time period")
	ErrRedisHealthcheck      = errors.New("usage: redis healthcheck failed")
	ErrCacheEntryUnreadable  = errors.New("usage: cached snapshot is unreadable")
)
