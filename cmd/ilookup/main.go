// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package main

import (
	"os"
	"strings"

	"github.com/spf13/pflag"
	_ "github.com/thediveo/lxkns/log/logrus"
)

func main() {
	// This is cobra boilerplate documentation, except for the missing call to
	// fmt.Println(err) which in the original boilerplate is just plain wrong:
	// it renders the error message twice, see also:
	// https://github.com/spf13/cobra/issues/304
	rootCmd := newRootCmd()
	rootCmd.SetArgs(normalizeArgs(rootCmd.Flags(), os.Args[1:]))
	if err := rootCmd.Execute(); err != nil {
		osExit(1)
	}
}

// For CLI unit tests...
var osExit = os.Exit

// normalizeArgs turns single-dash spellings of long flags, such as
// "-poolSize", into their double-dash spellings, such as "--poolSize". Other
// arguments, as well as anything after "--", are left untouched.
func normalizeArgs(flags *pflag.FlagSet, args []string) []string {
	norm := make([]string, 0, len(args))
	for idx, arg := range args {
		if arg == "--" {
			return append(norm, args[idx:]...)
		}
		if len(arg) > 2 && arg[0] == '-' && arg[1] != '-' {
			name, _, _ := strings.Cut(arg[1:], "=")
			if flags.Lookup(name) != nil {
				arg = "-" + arg
			}
		}
		norm = append(norm, arg)
	}
	return norm
}
