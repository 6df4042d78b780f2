package prepare

import "errors"

var (
	errBackupNotFound     = errors.New("backup archive not found")
	errBackupEntryMissing = errors.New("backup archive has no entry for source path")
)
