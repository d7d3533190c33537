package flatmapper

import "errors"

var (
	// ErrMappingCreation is matched (by errors.Is) by every *MappingCreationError
	ErrMappingCreation = errors.New("flatmapper: mapping creation")
	// ErrMapping is matched (by errors.Is) by every *MappingError
	ErrMapping = errors.New("flatmapper: mapping")
)

// MappingCreationError is the error returned when a Plan cannot be built for a type
type MappingCreationError struct {
	// Type is the name of the offending type (may be empty)
	Type    string
	Message string
	Err     error
}

func (e *MappingCreationError) Error() string {
	msg := "an error occurred during mapping creation: " + e.Message
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MappingCreationError) Unwrap() error {
	return e.Err
}

func (e *MappingCreationError) Is(target error) bool {
	return target == ErrMappingCreation
}

// MappingError is the error returned when rows cannot be hydrated
type MappingError struct {
	// Type is the name of the type being hydrated when the error occurred (may be empty)
	Type    string
	Message string
	Err     error
}

func (e *MappingError) Error() string {
	msg := "an error occurred during mapping: " + e.Message
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MappingError) Unwrap() error {
	return e.Err
}

func (e *MappingError) Is(target error) bool {
	return target == ErrMapping
}

func newCreationError(typeName string, msg string, cause error) error {
	return &MappingCreationError{Type: typeName, Message: msg, Err: cause}
}

func newMappingError(typeName string, msg string, cause error) error {
	return &MappingError{Type: typeName, Message: msg, Err: cause}
}
