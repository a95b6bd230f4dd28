package storage

import (
	"context"
	"fmt"
)

// validateContext ensures a context is usable before touching the DB.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return fmt.Errorf("context must not be nil")
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context is not valid: %w", err)
	}
	return nil
}

// validateString ensures a required string argument is present.
func validateString(value, name string) error {
	if value == "" {
		return fmt.Errorf("%s must not be empty", name)
	}
	return nil
}
