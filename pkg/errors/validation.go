package errors

import (
	"fmt"
	"strings"
)

// ValidationErrorData contains structured data for validation errors
type ValidationErrorData struct {
	Field      string      `json:"field"`
	Value      interface{} `json:"value,omitempty"`
	Constraint string      `json:"constraint,omitempty"`
}

// InvalidConfig reports a configuration value that fails its constraint
func InvalidConfig(field string, value interface{}, constraint string) Error {
	return newCoded(CodeInvalidConfig,
		fmt.Sprintf("invalid config %s=%v: %s", field, value, constraint), nil).
		WithData(&ValidationErrorData{
			Field:      field,
			Value:      value,
			Constraint: constraint,
		})
}

// InvalidArgument reports a bad argument to a public operation
func InvalidArgument(param, constraint string) Error {
	return newCoded(CodeInvalidArgument,
		fmt.Sprintf("invalid argument %s: %s", param, constraint), nil).
		WithData(&ValidationErrorData{
			Field:      param,
			Constraint: constraint,
		})
}

// CombineValidationErrors merges several validation errors into one
func CombineValidationErrors(errs []Error) Error {
	switch len(errs) {
	case 0:
		return nil
	case 1:
		return errs[0]
	}

	messages := make([]string, 0, len(errs))
	for _, err := range errs {
		messages = append(messages, err.Error())
	}
	return newCoded(CodeInvalidConfig, fmt.Sprintf("%d validation errors", len(errs)), nil).
		WithDetail(strings.Join(messages, "; ")).
		WithData(errs)
}

// Unauthorized reports a rejected token
func Unauthorized(why string) Error {
	return newCoded(CodeUnauthorized, fmt.Sprintf("unauthorized: %s", why), nil)
}

// InvalidToken reports a token that could not be obtained or is malformed
func InvalidToken(cause error) Error {
	return newCoded(CodeInvalidToken, fmt.Sprintf("invalid token: %s", reason(cause)), cause)
}
