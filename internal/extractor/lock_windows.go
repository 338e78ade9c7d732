//go:build windows

package extractor

import (
	"errors"
	"io/fs"
	"syscall"
)

// ERROR_SHARING_VIOLATION and ERROR_LOCK_VIOLATION, raised while Excel holds the file open
const (
	errSharingViolation syscall.Errno = 32
	errLockViolation    syscall.Errno = 33
)

func isLocked(err error) bool {
	return errors.Is(err, fs.ErrPermission) ||
		errors.Is(err, errSharingViolation) ||
		errors.Is(err, errLockViolation)
}
