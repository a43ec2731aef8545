package health

import (
	"context"
	"errors"
	"fmt"

	"mercator-hq/callmeter/pkg/config"
)

// ConfigCheck fails when no configuration is loaded or the loaded one no
// longer validates.
func ConfigCheck(current func() *config.Config) CheckFunc {
	return func(context.Context) error {
		cfg := current()
		if cfg == nil {
			return errors.New("configuration not loaded")
		}
		if err := config.Validate(cfg); err != nil {
			return fmt.Errorf("configuration invalid: %w", err)
		}
		return nil
	}
}
