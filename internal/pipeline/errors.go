package pipeline

import "fmt"

// Error taxonomy for the triage pipeline. Validation and authorization errors
// fail fast with no side effects; everything else leaves prior checkpoints in
// place and marks the session as errored.

type ValidationError struct {
	Msg string
}

func (e ValidationError) Error() string { return e.Msg }

type AuthorizationError struct {
	Msg string
}

func (e AuthorizationError) Error() string { return e.Msg }

// ConsistencyError reports mismatched identifiers or a precondition violation
// between stage inputs, detected before the stage does any work.
type ConsistencyError struct {
	Msg string
}

func (e ConsistencyError) Error() string { return e.Msg }

// UpstreamOracleError covers failed generative calls and output that does not
// decode against the named schema. Nonconformant output is never passed
// through silently.
type UpstreamOracleError struct {
	Schema string
	Err    error
}

func (e UpstreamOracleError) Error() string {
	return fmt.Sprintf("oracle call %q failed: %v", e.Schema, e.Err)
}

func (e UpstreamOracleError) Unwrap() error { return e.Err }

type RetrievalError struct {
	Phrase string
	Err    error
}

func (e RetrievalError) Error() string {
	return fmt.Sprintf("semantic search for %q failed: %v", e.Phrase, e.Err)
}

func (e RetrievalError) Unwrap() error { return e.Err }

type PersistenceError struct {
	Op  string
	Err error
}

func (e PersistenceError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e PersistenceError) Unwrap() error { return e.Err }
