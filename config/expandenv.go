package config

import (
	"fmt"
	"os"
	"regexp"
	"slices"
	"strings"
)

var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// MissingEnvError lists ${VAR} references with no value in the environment.
type MissingEnvError struct {
	Names []string
}

func (e *MissingEnvError) Error() string {
	return "config: missing required environment variables: " + strings.Join(e.Names, ", ")
}

// ExpandEnvStrict expands $VAR and ${VAR} in s. A ${VAR} reference to an
// unset variable is an error; a bare $VAR expands to the empty string. $$
// produces a literal $.
func ExpandEnvStrict(s string) (string, error) {
	const dollar = "\x00DBOPS_DOLLAR\x00"
	s = strings.ReplaceAll(s, "$$", dollar)

	var missing []string
	for _, m := range envRef.FindAllStringSubmatch(s, -1) {
		if _, ok := os.LookupEnv(m[1]); !ok && !slices.Contains(missing, m[1]) {
			missing = append(missing, m[1])
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return "", &MissingEnvError{Names: missing}
	}

	return strings.ReplaceAll(os.ExpandEnv(s), dollar, "$"), nil
}

// redactDSN hides the password of a URL-style DSN for error messages.
func redactDSN(dsn string) string {
	at := strings.LastIndex(dsn, "@")
	scheme := strings.Index(dsn, "://")
	if at < 0 || scheme < 0 || at < scheme {
		return dsn
	}
	userinfo := dsn[scheme+3 : at]
	if i := strings.Index(userinfo, ":"); i >= 0 {
		userinfo = userinfo[:i] + ":" + "xxxxx"
	}
	return fmt.Sprintf("%s%s%s", dsn[:scheme+3], userinfo, dsn[at:])
}
