package vault

import "errors"

var (
	errNoSystemMachineID = errors.New("no system machine identifier available")
	errVaultCreateFailed = errors.New("vault creation endpoint returned a non-2xx response")
	errRecapFailed       = errors.New("recap endpoint returned a non-2xx response")
	errEmptySecretFile   = errors.New("vault secret key file contains no key")
)
