// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/fabriclabs/workspace/pkg/types"
)

// ExitError signals a non-zero exit code without forcing os.Exit in RunE handlers.
type ExitError struct {
	Code types.ExitCode
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// failed wraps err as an ExitFailure.
func failed(format string, args ...any) *ExitError {
	return &ExitError{Code: types.ExitFailure, Err: fmt.Errorf(format, args...)}
}

// usage wraps err as an ExitUsage for bad flags, arguments and configuration.
func usage(err error) *ExitError {
	return &ExitError{Code: types.ExitUsage, Err: err}
}
