// Package validator checks `validate` struct tags for usecase inputs and
// module dependencies.
package validator

type Validator interface {
	Validate(data any) error
}
