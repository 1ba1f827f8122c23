package media

import "errors"

var (
	// ErrHandleNotFound indicates the upload handle does not exist or expired.
	ErrHandleNotFound = errors.New("upload handle not found")
	// ErrHandleUsed indicates the upload handle was already consumed.
	ErrHandleUsed = errors.New("upload handle already used")
	// ErrBlobNotFound indicates the requested stored object does not exist.
	ErrBlobNotFound = errors.New("stored blob not found")
)
