// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package main

import (
	"io"

	"github.com/muesli/termenv"
)

var (
	resolvedStyle = termenv.Style{}.Foreground(termenv.ANSIGreen)
	failedStyle   = termenv.Style{}.Foreground(termenv.ANSIRed)
	doneStyle     = termenv.Style{}.Bold()
)

// failureStyle returns a function rendering failure reports in red, but only
// if the specified writer is a terminal supporting colors.
func failureStyle(w io.Writer) func(string) string {
	out := termenv.NewOutput(w)
	return func(s string) string {
		return out.String(s).Foreground(termenv.ANSIRed).String()
	}
}
