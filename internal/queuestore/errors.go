// Copyright 2025 James Ross
package queuestore

import "errors"

var (
	// ErrConfirmRequired guards ClearEverything against accidental use.
	ErrConfirmRequired = errors.New("queuestore: ClearEverything requires confirm=true")
	// ErrUnexpectedScriptResult signals a malformed response from the
	// dequeue_batch Lua script; this should never happen against a
	// real Redis-compatible server.
	ErrUnexpectedScriptResult = errors.New("queuestore: unexpected dequeue_batch script result")
)
