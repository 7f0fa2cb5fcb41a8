package errs

import "errors"

// Error kinds recognized across the service. Handlers map these onto HTTP
// status codes; everything else is treated as an internal failure.
var (
	// ErrNotFound means the requested owner has no stored records.
	ErrNotFound = errors.New("not found")

	// ErrUpstream marks embedding/LLM/vector-store transport failures.
	// The core never retries these automatically.
	ErrUpstream = errors.New("upstream unavailable")

	// ErrContract marks an LLM response missing required JSON keys.
	// The novelty controller consumes one attempt per contract violation.
	ErrContract = errors.New("llm contract violation")

	// ErrPersistence marks a failed vector store write. No compensation.
	ErrPersistence = errors.New("persistence failure")

	// ErrInvalidInput marks a malformed request that slipped past decoding.
	ErrInvalidInput = errors.New("invalid input")
)
