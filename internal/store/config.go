package store

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/wolfeidau/storesync/internal/cache"
)

// DefaultPageSize is the number of items requested per list page.
const DefaultPageSize = 25

// Config tunes the store. The zero value is not valid, start from
// DefaultConfig.
type Config struct {
	PageSize      int           `validate:"gte=1,lte=500"`
	CollectionTTL time.Duration `validate:"gt=0"`
	EntityTTL     time.Duration `validate:"gt=0"`

	// Summary asks list endpoints for the lighter summary representation.
	Summary bool

	// Clock stamps cache entries. Defaults to time.Now.
	Clock func() time.Time
}

// DefaultConfig returns the settings used by the consoles.
func DefaultConfig() Config {
	return Config{
		PageSize:      DefaultPageSize,
		CollectionTTL: cache.DefaultTTL,
		EntityTTL:     cache.DefaultTTL,
		Summary:       true,
		Clock:         time.Now,
	}
}

// Validate checks the config using its struct tags.
func (c Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())

	if err := v.Struct(c); err != nil {
		return formatValidationErrors(err)
	}

	return nil
}

func formatValidationErrors(err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		messages := make([]string, 0, len(validationErrors))
		for _, e := range validationErrors {
			messages = append(messages, formatSingleValidationError(e))
		}
		return fmt.Errorf("invalid config: %s", strings.Join(messages, "; "))
	}
	return err
}

func formatSingleValidationError(e validator.FieldError) string {
	field := e.Namespace()

	switch e.Tag() {
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "lte":
		return fmt.Sprintf("%s must be at most %s", field, e.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, e.Param())
	default:
		return fmt.Sprintf("%s failed validation: %s", field, e.Tag())
	}
}
