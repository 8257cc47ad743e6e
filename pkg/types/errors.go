package types

import "errors"

// Sentinel errors for loader operations. Check them with errors.Is.
var (
	// ErrResourceMissing indicates an embedded resource path is empty or not bundled
	ErrResourceMissing = errors.New("embedded resource missing")

	// ErrFileIO indicates a read or copy failure on the filesystem
	ErrFileIO = errors.New("file i/o failed")

	// ErrScriptEval indicates the engine rejected a script
	ErrScriptEval = errors.New("script evaluation failed")

	// ErrEntryPointUnavailable indicates a lifecycle function is missing or threw
	ErrEntryPointUnavailable = errors.New("entry point unavailable")
)
