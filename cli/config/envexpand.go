// Package config handles YAML config file loading for obcsim run.
package config

import (
	"os"
	"regexp"
)

// envPattern matches ${VAR} references, optionally with a ${VAR:-default}
// fallback value.
var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// ExpandEnv substitutes environment variable references in the raw
// config text before it is parsed. A reference to an unset or empty
// variable expands to its fallback when one is given, otherwise to the
// empty string rather than an error: values the session actually needs
// are caught by Config.Validate (e.g. the s3 path check when the s3
// backend is selected).
func ExpandEnv(input string) string {
	return envPattern.ReplaceAllStringFunc(input, func(ref string) string {
		sub := envPattern.FindStringSubmatch(ref)
		if sub == nil {
			return ref
		}
		if value, ok := os.LookupEnv(sub[1]); ok && value != "" {
			return value
		}
		return sub[2]
	})
}
