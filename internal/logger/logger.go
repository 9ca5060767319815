// Package logger builds the application's structured logger.
package logger

import "go.uber.org/zap"

// New returns a zap logger appropriate for the environment: JSON output
// at info level for prod, human-readable output at debug level otherwise.
func New(env string) (*zap.Logger, error) {
    if env == "prod" {
        return zap.NewProduction()
    }
    return zap.NewDevelopment()
}
