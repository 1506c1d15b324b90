package env

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

type Environment string

const (
	Production  Environment = "production"
	Development Environment = "development"
)

// Get reads ENVIRONMENT, defaulting to production when unset so that a bare
// CLI invocation talks to real services.
func Get() Environment {
	switch os.Getenv("ENVIRONMENT") {
	case "", "production":
		return Production
	case "development":
		return Development
	default:
		panic("Invalid environment is set")
	}
}

// LoadDotEnv populates the process environment from the given dotenv files.
// Missing files are skipped and variables that are already set win.
func LoadDotEnv(paths ...string) error {
	existing := []string{}
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			existing = append(existing, path)
		}
	}

	if len(existing) == 0 {
		return nil
	}

	return godotenv.Load(existing...)
}

func GetOrPanic(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("No env variable found for key %s", key))
	}

	return val
}

func GetOr(key string, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}

	return fallback
}
