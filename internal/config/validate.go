package config

import (
	"errors"
	"sort"
	"strings"

	"github.com/iatidata/sector-harvester/internal/validator"
)

// ErrMissingAPIKey is returned when a harvest is started without API_KEY.
var ErrMissingAPIKey = errors.New("API_KEY is not set")

// ValidationError lists configuration fields that failed validation.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	msgs := make([]string, 0, len(keys))
	for _, k := range keys {
		msgs = append(msgs, e.Fields[k])
	}
	return "invalid configuration: " + strings.Join(msgs, "; ")
}

// Validate checks the loaded values against the struct tags.
func (c *Config) Validate() error {
	if fields := validator.Struct(c); fields != nil {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// ValidateHarvest additionally requires the Datastore subscription key.
func (c *Config) ValidateHarvest() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.APIKey == "" {
		return ErrMissingAPIKey
	}
	return nil
}
