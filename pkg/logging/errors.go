// ruled/pkg/logging/errors.go

package logging

import (
	"fmt"

	"github.com/rs/zerolog"
)

type ErrorType string

const (
	ErrorTypeParse     ErrorType = "PARSE"
	ErrorTypeDuplicate ErrorType = "DUPLICATE"
	ErrorTypeTemplate  ErrorType = "TEMPLATE"
	ErrorTypeStore     ErrorType = "STORE"
	ErrorTypeScript    ErrorType = "SCRIPT"
)

type EngineError struct {
	Type    ErrorType
	Message string
	Err     error
	Fields  map[string]interface{}
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

func NewError(errType ErrorType, message string, err error, fields map[string]interface{}) *EngineError {
	return &EngineError{
		Type:    errType,
		Message: message,
		Err:     err,
		Fields:  fields,
	}
}

func LogError(logger zerolog.Logger, err error) {
	engErr, ok := err.(*EngineError)
	if !ok {
		logger.Error().Err(err).Msg(err.Error())
		return
	}

	event := logger.Error().Err(engErr.Err).
		Str("error_type", string(engErr.Type)).
		Str("message", engErr.Message)

	for k, v := range engErr.Fields {
		event = event.Interface(k, v)
	}

	event.Msg(engErr.Message)
}
