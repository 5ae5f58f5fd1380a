package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/subosito/gotenv"
)

// DefaultEnvFile is loaded when no --env-file is given.
const DefaultEnvFile = ".env"

// LoadEnvFile seeds the process environment from a dotenv file so that the
// VIBBIT_* variables it defines are visible to Load. Variables already set in
// the environment win. A missing file is ignored unless required is true.
func LoadEnvFile(path string, required bool) (bool, error) {
	if path == "" {
		return false, nil
	}

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) && !required {
			return false, nil
		}

		return false, fmt.Errorf("reading env file %q: %w", path, err)
	}

	if err := gotenv.Load(path); err != nil {
		return false, fmt.Errorf("parsing env file %q: %w", path, err)
	}

	return true, nil
}
