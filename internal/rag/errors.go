package rag

import "errors"

// ErrIndexUnavailable is returned by Query when the index holds no documents
// at all. It is the only failure that propagates to the caller; degraded
// searches, planning failures and generation failures are absorbed into the
// response instead.
var ErrIndexUnavailable = errors.New("document index unavailable")
