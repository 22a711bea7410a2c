package auditlog

import "errors"

var (
	ErrFailedToConnectToMongo = errors.New("auditlog: failed to connect to mongo")
	ErrHealthcheckFailed      = errors.New("auditlog: mongo healthcheck failed")
	ErrFailedToRecord         = errors.New("auditlog: failed to record entry")
	ErrFailedToFetch          = errors.New("auditlog: failed to fetch history")
)
