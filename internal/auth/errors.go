package auth

import "errors"

var errAuthEndpointFailed = errors.New("auth endpoint returned a non-2xx response")
