// ruled/pkg/scripting/safe_vm.go

package scripting

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/robertkrimen/otto"

	"ruled/pkg/logging"
	"ruled/pkg/ruleset"
)

// SafeVM runs rule-attached scripts in a restricted otto interpreter.
// Rules may name a script on a react action to transform the rendered
// effect content before it is emitted.
type SafeVM struct {
	vm      *otto.Otto
	scripts map[string]ruleset.Script
}

func NewSafeVM() *SafeVM {
	vm := otto.New()

	// Limit available globals
	if mathObj, err := vm.Get("Math"); err == nil {
		vm.Set("Math", mathObj)
	}
	if dateObj, err := vm.Get("Date"); err == nil {
		vm.Set("Date", dateObj)
	}

	// Remove potentially dangerous functions
	vm.Set("eval", otto.UndefinedValue())
	vm.Set("Function", otto.UndefinedValue())

	return &SafeVM{
		vm:      vm,
		scripts: make(map[string]ruleset.Script),
	}
}

func (s *SafeVM) SetScript(name string, script ruleset.Script) error {
	logging.Logger.Debug().Str("scriptName", name).Msg("Setting script")
	s.scripts[name] = script
	return nil
}

// RunScript invokes a registered script with the given named parameters and
// returns its exported result. Execution is bounded by the timeout.
func (s *SafeVM) RunScript(name string, params map[string]interface{}, timeout time.Duration) (interface{}, error) {
	script, ok := s.scripts[name]
	if !ok {
		logging.Logger.Error().Str("scriptName", name).Msg("Script not found")
		return nil, fmt.Errorf("script not found: %s", name)
	}

	logging.Logger.Debug().Str("scriptName", name).Interface("params", params).Msg("Running script")

	funcDef := fmt.Sprintf("(function(%s) { %s })", strings.Join(script.Params, ","), script.Body)

	done := make(chan interface{})
	errChan := make(chan error)

	s.vm.Interrupt = make(chan func(), 1)
	defer func() { s.vm.Interrupt = nil }()

	go func() {
		defer close(done)
		defer close(errChan)
		defer func() {
			if r := recover(); r != nil {
				if r == "Execution timeout" {
					errChan <- fmt.Errorf("script execution timed out")
				} else {
					errChan <- fmt.Errorf("script panicked: %v", r)
				}
			}
		}()

		s.vm.SetStackDepthLimit(1000)

		value, err := s.vm.Eval(funcDef)
		if err != nil {
			errChan <- fmt.Errorf("error evaluating function: %w", err)
			return
		}

		args := make([]interface{}, len(script.Params))
		for i, param := range script.Params {
			args[i] = params[param]
		}

		result, err := value.Call(otto.NullValue(), args...)
		if err != nil {
			errChan <- err
			return
		}

		exportedResult, err := result.Export()
		if err != nil {
			errChan <- fmt.Errorf("error exporting result: %w", err)
			return
		}
		if floatResult, ok := exportedResult.(float64); ok {
			if math.IsInf(floatResult, 0) || math.IsNaN(floatResult) {
				logging.Logger.Warn().Str("scriptName", name).Float64("result", floatResult).Msg("Script produced Inf or NaN value")
				errChan <- fmt.Errorf("script produced invalid numeric result")
				return
			}
		}
		done <- exportedResult
	}()

	select {
	case result := <-done:
		return result, nil
	case err := <-errChan:
		logging.Logger.Error().Err(err).Str("scriptName", name).Msg("Script execution error")
		return nil, err
	case <-time.After(timeout + 10*time.Millisecond):
		logging.Logger.Error().Str("scriptName", name).Msg("Script execution timed out")
		return nil, fmt.Errorf("script execution timed out")
	}
}

// Transform runs a content-transforming script. The script receives the
// rendered content and the capture groups and must return a string.
func (s *SafeVM) Transform(name, content string, captures []string, timeout time.Duration) (string, error) {
	args := make([]interface{}, len(captures))
	for i, c := range captures {
		args[i] = c
	}
	result, err := s.RunScript(name, map[string]interface{}{
		"content":  content,
		"captures": args,
	}, timeout)
	if err != nil {
		return "", err
	}
	transformed, ok := result.(string)
	if !ok {
		return "", fmt.Errorf("script %q returned %T, want string", name, result)
	}
	return transformed, nil
}
