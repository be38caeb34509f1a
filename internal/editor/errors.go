package editor

import "fmt"

// FieldNotFoundError means the field's value element is not on the page.
type FieldNotFoundError struct {
	Field string
}

func (e *FieldNotFoundError) Error() string {
	return fmt.Sprintf("could not find the %s value on this page", e.Field)
}

// OptionsLoadError means the choices for a selection field could not be
// fetched.
type OptionsLoadError struct {
	Field string
	Err   error
}

func (e *OptionsLoadError) Error() string {
	return fmt.Sprintf("loading %s options: %v", e.Field, e.Err)
}

func (e *OptionsLoadError) Unwrap() error { return e.Err }

// InvalidValueError means the control value cannot be sent as the field's
// type.
type InvalidValueError struct {
	Field string
	Err   error
}

func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
}

func (e *InvalidValueError) Unwrap() error { return e.Err }
