package store

import "errors"

// Precondition violations are returned synchronously from store operations
// and must be handled by the caller before invoking. Failures of async
// hardware operations are never returned this way; they land in the store's
// error/lastError fields so the UI can render them reactively.
var (
	ErrPermissionDenied     = errors.New("camera permission not granted")
	ErrNotInitialized       = errors.New("camera not initialized")
	ErrCameraBusy           = errors.New("camera operation already in flight")
	ErrSwitchWhileRecording = errors.New("cannot switch camera while recording")
)
