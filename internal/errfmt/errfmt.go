// Package errfmt folds nested script/runtime error chains into a single
// human-readable message, per the contract every check result and script
// failure is reported through.
package errfmt

import (
	"errors"
	"fmt"
	"strings"

	lua "github.com/yuin/gopher-lua"
)

// CallbackError wraps an error raised from a Go built-in invoked by a
// script, carrying the Lua traceback captured at the point of the call.
type CallbackError struct {
	Cause      error
	Traceback  string
}

func (e *CallbackError) Error() string {
	return Format(e)
}

func (e *CallbackError) Unwrap() error {
	return e.Cause
}

// Format turns an arbitrary error value into the single-string form used at
// every reporting surface: script check messages, top-level script-mode
// failure reporting, and runner log lines.
func Format(err error) string {
	if err == nil {
		return ""
	}

	var apiErr *lua.ApiError
	if errors.As(err, &apiErr) {
		return formatAPIError(apiErr)
	}

	var cbErr *CallbackError
	if errors.As(err, &cbErr) {
		msg := Format(cbErr.Cause)
		if cbErr.Traceback != "" {
			return msg + "\n" + cbErr.Traceback
		}
		return msg
	}

	return err.Error()
}

func formatAPIError(apiErr *lua.ApiError) string {
	var msg string
	switch apiErr.Type {
	case lua.ApiErrorRun, lua.ApiErrorSyntax:
		msg = formatLuaValue(apiErr.Object)
	case lua.ApiErrorError:
		msg = "error in error handling: " + formatLuaValue(apiErr.Object)
	default:
		msg = apiErr.Error()
	}

	if apiErr.StackTrace != "" {
		return msg + "\n" + apiErr.StackTrace
	}
	return msg
}

// formatLuaValue renders a Lua value for error text: strings unquoted,
// everything else via its natural string conversion.
func formatLuaValue(v lua.LValue) string {
	if v == nil {
		return "nil"
	}
	if s, ok := v.(lua.LString); ok {
		return string(s)
	}
	return v.String()
}

// WithMessage is a convenience used by built-ins to attach a caller-supplied
// msg argument (assert.*'s optional third argument) to a failure.
func WithMessage(base string, msg string) string {
	if msg == "" {
		return base
	}
	return fmt.Sprintf("%s: %s", base, msg)
}

// Join mirrors strings.Join with a single-space separator, for building
// multi-part error text. No built-in calls it at present; assertion
// failures format their operands with fmt.Sprintf directly.
func Join(parts ...string) string {
	return strings.Join(parts, " ")
}
