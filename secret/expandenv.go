package secret

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
)

// ErrMissingEnv is matched by errors.Is when a referenced variable is unset.
var ErrMissingEnv = errors.New("secret: missing environment variable")

// MissingEnvError lists the variables a value referenced but the environment lacks.
type MissingEnvError struct {
	Names []string
}

func (e *MissingEnvError) Error() string {
	return fmt.Sprintf("secret: missing required environment variables: %s", strings.Join(e.Names, ", "))
}

// Is reports ErrMissingEnv.
func (e *MissingEnvError) Is(target error) bool {
	return target == ErrMissingEnv
}

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// ExpandEnvStrict expands environment variables in s.
//
// Semantics:
//   - `$VAR` and `${VAR}` are expanded via os.ExpandEnv.
//   - `${VAR}` with VAR unset (or set to the empty string) is a *MissingEnvError.
//   - `$$` emits a literal `$`.
func ExpandEnvStrict(s string) (string, error) {
	const dollarSentinel = "\x00RESEARCHFLOW_SECRET_DOLLAR\x00"
	s = strings.ReplaceAll(s, "$$", dollarSentinel)

	missing := make(map[string]struct{})
	for _, match := range envVarPattern.FindAllStringSubmatch(s, -1) {
		if v, ok := os.LookupEnv(match[1]); !ok || v == "" {
			missing[match[1]] = struct{}{}
		}
	}
	if len(missing) > 0 {
		names := make([]string, 0, len(missing))
		for k := range missing {
			names = append(names, k)
		}
		sort.Strings(names)
		return "", &MissingEnvError{Names: names}
	}

	s = os.ExpandEnv(s)
	return strings.ReplaceAll(s, dollarSentinel, "$"), nil
}
