package core

import "fmt"

// ErrResolution indicates that the release version to install could
// not be determined from the upstream metadata endpoint.
type ErrResolution struct {
	Source string
	Err    error
}

func (e *ErrResolution) Error() string {
	return fmt.Sprintf("resolve latest release from %s: %v", e.Source, e.Err)
}

func (e *ErrResolution) Unwrap() error { return e.Err }

// ErrFetch indicates that a manifest bundle could not be downloaded.
// StatusCode is zero when the request never produced a response.
type ErrFetch struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *ErrFetch) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: unexpected status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *ErrFetch) Unwrap() error { return e.Err }

// ErrParse indicates that a document inside a manifest bundle is not
// well-formed. Document is the zero-based index of the raw segment
// between delimiters, counting skipped empty segments.
type ErrParse struct {
	Document int
	Err      error
}

func (e *ErrParse) Error() string {
	return fmt.Sprintf("parse document %d: %v", e.Document, e.Err)
}

func (e *ErrParse) Unwrap() error { return e.Err }

// ErrEmptyChain indicates an attempt to attach resources to a chain
// that has no units and therefore no tail.
type ErrEmptyChain struct {
	Chain string
}

func (e *ErrEmptyChain) Error() string {
	if e.Chain == "" {
		return "dependency chain is empty"
	}
	return fmt.Sprintf("dependency chain %q is empty", e.Chain)
}

// ErrApply indicates that a unit could not be submitted to the apply
// target. Units after it in the chain were not attempted.
type ErrApply struct {
	Unit string
	Err  error
}

func (e *ErrApply) Error() string {
	return fmt.Sprintf("apply unit %s: %v", e.Unit, e.Err)
}

func (e *ErrApply) Unwrap() error { return e.Err }

// ErrPayloadTooLarge indicates that a single object exceeds the
// per-request size ceiling of the apply target.
type ErrPayloadTooLarge struct {
	Size  int
	Limit int
}

func (e *ErrPayloadTooLarge) Error() string {
	return fmt.Sprintf("request body of %d bytes exceeds limit of %d bytes", e.Size, e.Limit)
}

// ErrInvalidInput indicates a domain-level input validation failure.
type ErrInvalidInput struct {
	Field   string
	Message string
}

func (e *ErrInvalidInput) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
	}
	return e.Message
}
