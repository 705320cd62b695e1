package engine

import "errors"

// ErrUpstream marks a failure of an external service (embedding model,
// vector index, generative backend). Callers treat it as retryable and
// degrade to an empty or default result instead of failing the request.
var ErrUpstream = errors.New("upstream unavailable")
