package traceio

import "errors"

var errNon2xxPush = errors.New("trace push endpoint returned a non-2xx response")
