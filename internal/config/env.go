package config

import (
	"os"

	"github.com/joho/godotenv"

	ferrors "git.home.luguber.info/inful/livepreview/internal/foundation/errors"
)

// LoadEnvFiles loads KEY=VALUE files into the process environment. Missing files are skipped
// and variables that are already set are never overridden.
func LoadEnvFiles(files ...string) error {
	for _, f := range files {
		if _, err := os.Stat(f); os.IsNotExist(err) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return ferrors.WrapError(err, ferrors.CategoryConfig, "failed to load env file").
				WithContext("path", f).
				Build()
		}
	}
	return nil
}
