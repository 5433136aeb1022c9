package mongo

import "errors"

var (
	ErrConnectFailed     = errors.New("mongo: failed to connect")
	ErrHealthcheckFailed = errors.New("mongo: healthcheck failed")
)
