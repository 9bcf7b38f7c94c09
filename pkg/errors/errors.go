package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeGraph represents graph database errors
	ErrorTypeGraph ErrorType = "graph"
	// ErrorTypeEmbedding represents embedding backend errors
	ErrorTypeEmbedding ErrorType = "embedding"
	// ErrorTypeCluster represents clustering run errors
	ErrorTypeCluster ErrorType = "cluster"
	// ErrorTypeGovernance represents concept lifecycle errors
	ErrorTypeGovernance ErrorType = "governance"
	// ErrorTypeIntegrity represents ontology integrity violations
	ErrorTypeIntegrity ErrorType = "integrity"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
)

// BaseError is the base error type with common fields
type BaseError struct {
	Type      ErrorType
	Message   string
	Timestamp time.Time
	Err       error // Wrapped error
}

// Error implements the error interface
func (e *BaseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the wrapped error for error unwrapping
func (e *BaseError) Unwrap() error {
	return e.Err
}

// NewBaseError creates a new base error
func NewBaseError(errType ErrorType, message string, err error) *BaseError {
	return &BaseError{
		Type:      errType,
		Message:   message,
		Timestamp: time.Now(),
		Err:       err,
	}
}

// Governance Errors

// GovernanceCode identifies a specific concept lifecycle failure.
type GovernanceCode string

const (
	// CodeConceptNotFound is returned when the concept id does not exist
	CodeConceptNotFound GovernanceCode = "CONCEPT_NOT_FOUND"
	// CodeConceptNotProposed is returned when a transition requires status=proposed
	CodeConceptNotProposed GovernanceCode = "CONCEPT_NOT_PROPOSED"
)

// GovernanceError is a typed failure from a concept lifecycle transition.
// It is never swallowed; boundary layers map Code to transport semantics
// (not-found vs. conflict).
type GovernanceError struct {
	*BaseError
	Code      GovernanceCode
	ConceptID string
}

func NewGovernanceError(code GovernanceCode, conceptID, message string) *GovernanceError {
	return &GovernanceError{
		BaseError: NewBaseError(ErrorTypeGovernance, fmt.Sprintf("%s: %s", code, message), nil),
		Code:      code,
		ConceptID: conceptID,
	}
}

// AsGovernanceError unwraps err into a *GovernanceError if possible.
func AsGovernanceError(err error) (*GovernanceError, bool) {
	var ge *GovernanceError
	if errors.As(err, &ge) {
		return ge, true
	}
	return nil, false
}

// Integrity Errors

// ViolationCode identifies a structural invariant breach in a mutation bundle.
type ViolationCode string

const (
	CodeInvalidConceptStatus      ViolationCode = "INVALID_CONCEPT_STATUS"
	CodeParticularMissingInstance ViolationCode = "PARTICULAR_MISSING_INSTANCE_OF"
	CodeOrphanParticular          ViolationCode = "ORPHAN_PARTICULAR"
	CodeAutomaticFormCreation     ViolationCode = "AUTOMATIC_FORM_CREATION_FORBIDDEN"
)

// Violation is a single integrity rule breach.
type Violation struct {
	Code    ViolationCode `json:"code"`
	Message string        `json:"message"`
	NodeID  string        `json:"node_id,omitempty"`
}

// IntegrityViolation carries the full violation list for a rejected bundle,
// plus provenance for audit logging. The whole bundle is blocked; there is
// no partial commit.
type IntegrityViolation struct {
	*BaseError
	Violations    []Violation
	InteractionID string
	SourceURIs    []string
}

func NewIntegrityViolation(violations []Violation, interactionID string, sourceURIs []string) *IntegrityViolation {
	return &IntegrityViolation{
		BaseError:     NewBaseError(ErrorTypeIntegrity, fmt.Sprintf("bundle rejected with %d violation(s)", len(violations)), nil),
		Violations:    violations,
		InteractionID: interactionID,
		SourceURIs:    sourceURIs,
	}
}

// AsIntegrityViolation unwraps err into an *IntegrityViolation if possible.
func AsIntegrityViolation(err error) (*IntegrityViolation, bool) {
	var iv *IntegrityViolation
	if errors.As(err, &iv) {
		return iv, true
	}
	return nil, false
}

// HasViolation reports whether the violation list contains the given code.
func (e *IntegrityViolation) HasViolation(code ViolationCode) bool {
	for _, v := range e.Violations {
		if v.Code == code {
			return true
		}
	}
	return false
}
