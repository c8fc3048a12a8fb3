package config

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks struct tags and the semantic rules tags cannot express:
// group periods and durations parse, group names are unique.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	if err := structValidator().Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	seen := make(map[string]struct{}, len(cfg.Hive.Groups))
	for i, g := range cfg.Hive.Groups {
		name := strings.TrimSpace(g.Name)
		if name == "" {
			return fmt.Errorf("hive.groups[%d].name: must not be blank", i)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("hive.groups[%d].name: duplicate group %q", i, name)
		}
		seen[name] = struct{}{}
		if _, err := ParsePeriodMS(fmt.Sprintf("hive.groups[%d].period", i), g.Period); err != nil {
			return err
		}
	}
	if _, err := ParseDurationField("hive.lost_tick_log_every", cfg.Hive.LostTickLogEvery); err != nil {
		return err
	}
	if cfg.Storage != nil {
		if _, err := ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout); err != nil {
			return err
		}
	}
	return nil
}
