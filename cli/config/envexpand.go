// Package config handles mural.yaml loading for the serve and view commands.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
)

// envVarPattern matches ${VAR}, ${VAR:-default} and ${VAR:?message}.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::([-?])([^}]*))?\}`)

// ErrMissingEnv is returned when a ${VAR:?message} reference is unset.
var ErrMissingEnv = errors.New("required environment variable not set")

// ExpandEnv replaces environment references in input:
//
//	${VAR}           value of VAR, empty when unset
//	${VAR:-default}  value of VAR, default when unset or empty
//	${VAR:?message}  value of VAR, an error naming message when unset or empty
//
// Plain references to unset variables expand to the empty string. Peer
// addresses and adapter URLs left empty that way fail later, when the
// topology is resolved.
func ExpandEnv(input string) (string, error) {
	var missing []error
	out := envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		name, op, arg := groups[1], groups[2], groups[3]

		if value, ok := os.LookupEnv(name); ok && value != "" {
			return value
		}
		switch op {
		case "-":
			return arg
		case "?":
			if arg == "" {
				arg = "must be set"
			}
			missing = append(missing, fmt.Errorf("%w: %s: %s", ErrMissingEnv, name, arg))
		}
		return ""
	})
	return out, errors.Join(missing...)
}
