package op_service

import (
	"os"
	"slices"
	"strings"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"
)

// PrefixEnvVar returns the environment variable of a flag, under the prefix of the service.
func PrefixEnvVar(prefix, suffix string) []string {
	return []string{prefix + "_" + suffix}
}

// ValidateEnvVars logs a warning for every environment variable with the prefix of the service
// that no flag reads. These are usually typos.
func ValidateEnvVars(prefix string, flags []cli.Flag, log log.Logger) {
	for _, envVar := range validateEnvVars(prefix, os.Environ(), cliFlagsToEnvVars(flags)) {
		log.Warn("Unknown env var", "prefix", prefix, "env_var", envVar)
	}
}

func cliFlagsToEnvVars(flags []cli.Flag) map[string]struct{} {
	definedEnvVars := make(map[string]struct{})
	for _, flag := range flags {
		envFlag, ok := flag.(interface{ GetEnvVars() []string })
		if !ok {
			continue
		}
		for _, envVar := range envFlag.GetEnvVars() {
			definedEnvVars[envVar] = struct{}{}
		}
	}
	return definedEnvVars
}

// validateEnvVars returns the names of the prefixed variables of env that are not defined.
func validateEnvVars(prefix string, env []string, definedEnvVars map[string]struct{}) []string {
	var out []string
	for _, envVar := range env {
		name, _, _ := strings.Cut(envVar, "=")
		if !strings.HasPrefix(name, prefix+"_") {
			continue
		}
		if _, ok := definedEnvVars[name]; !ok {
			out = append(out, name)
		}
	}
	slices.Sort(out)
	return out
}
