package instrument

import "errors"

var (
	errNon2xxResponse           = errors.New("instrumentation endpoint returned a non-2xx response")
	errMismatchedResponseLength = errors.New("instrumentation response length does not match request")
	errNoBackupForInPlaceWrite  = errors.New("in-place write requested with no backup archive open")
)
