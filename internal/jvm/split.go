// Package jvm decomposes a JVM invocation into the pieces needed to run it
// under a resident nailgun server.
package jvm

import (
	"fmt"
	"regexp"
	"strings"
)

// ParsedCommandLine is a JVM argv split at its main-class boundary.
// NailgunArgs carry everything a server needs to boot (JVM flags and the
// classpath); ClientArgs are forwarded to the running class.
type ParsedCommandLine struct {
	NailgunArgs []string
	ClientArgs  []string
	MainClass   string
}

// ParseError reports an argv that does not decompose into JVM flags, one
// main class, and program arguments. Ambiguity here is a hard failure: a
// misclassified argument would silently corrupt either the server classpath
// or the client's arguments.
type ParseError struct {
	Argv   []string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("cannot parse JVM command line %q: %s", e.Argv, e.Reason)
}

// Flags whose value arrives as the following argument.
var valueFlags = map[string]bool{
	"-cp":          true,
	"-classpath":   true,
	"--class-path": true,
}

var mainClassRe = regexp.MustCompile(`^([A-Za-z_$][A-Za-z0-9_$]*\.)*[A-Za-z_$][A-Za-z0-9_$]*$`)

// Parse splits argv strictly. Every leading "-" argument (plus the value of
// a classpath flag) belongs to the server; the first non-flag argument must
// be a well-formed fully-qualified class name and everything after it
// belongs to the client.
func Parse(argv []string) (ParsedCommandLine, error) {
	var parsed ParsedCommandLine

	i := 0
	for i < len(argv) {
		arg := argv[i]
		if !strings.HasPrefix(arg, "-") {
			break
		}
		parsed.NailgunArgs = append(parsed.NailgunArgs, arg)
		i++
		if valueFlags[arg] {
			if i >= len(argv) {
				return ParsedCommandLine{}, &ParseError{Argv: argv, Reason: fmt.Sprintf("flag %q is missing its value", arg)}
			}
			parsed.NailgunArgs = append(parsed.NailgunArgs, argv[i])
			i++
		}
	}

	if i >= len(argv) {
		return ParsedCommandLine{}, &ParseError{Argv: argv, Reason: "no main class found"}
	}

	main := argv[i]
	if !mainClassRe.MatchString(main) {
		return ParsedCommandLine{}, &ParseError{Argv: argv, Reason: fmt.Sprintf("%q is not a valid Java main class name", main)}
	}
	parsed.MainClass = main
	if rest := argv[i+1:]; len(rest) > 0 {
		parsed.ClientArgs = append(parsed.ClientArgs, rest...)
	}

	return parsed, nil
}
