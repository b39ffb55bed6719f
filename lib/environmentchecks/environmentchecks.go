package environmentchecks

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

// HandleRequired returns an error naming every variable in required that is unset or empty
func HandleRequired(required []string) error {
	missing := make([]string, 0)
	for _, name := range required {
		if os.Getenv(name) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	return nil
}

// HandleDefaults sets every variable in defaults that is not already present in the environment.
// An explicitly empty variable is kept as-is.
func HandleDefaults(defaults map[string]string) []string {
	applied := make([]string, 0, len(defaults))
	for name, value := range defaults {
		if _, ok := os.LookupEnv(name); ok {
			continue
		}
		os.Setenv(name, value)
		applied = append(applied, name)
	}
	sort.Strings(applied)
	return applied
}
