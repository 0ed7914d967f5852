package config

import (
	"errors"
	"fmt"
	"sort"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/qcrao/copilot/internal/content"
)

// shareTolerance absorbs float rounding when summing section shares.
const shareTolerance = 1e-9

// Validate validates the configuration.
func (c *GlobalConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.LogLevel, validation.In("debug", "info", "warn", "error")),
		validation.Field(&c.Model, validation.Required),
	); err != nil {
		return err
	}
	if c.Context.MaxTokens == 0 && c.ContextWindow() <= 0 {
		return fmt.Errorf("model %q has no context window in [models]", c.Model)
	}
	if err := c.Context.Validate(); err != nil {
		return fmt.Errorf("context: %w", err)
	}
	if err := c.Cache.Validate(); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	if err := c.Vault.Validate(); err != nil {
		return fmt.Errorf("vault: %w", err)
	}
	return c.validateSections()
}

// Validate validates the context configuration.
func (c *ContextConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.ReserveFraction, validation.Required, validation.Min(0.0).Exclusive(), validation.Max(1.0).Exclusive()),
		validation.Field(&c.MaxTokens, validation.Min(0)),
		validation.Field(&c.VisibleBlocks, validation.Min(0)),
	)
}

// Validate validates the cache configuration.
func (c *CacheConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.TTLMs, validation.Required, validation.Min(1)),
		validation.Field(&c.DebounceMs, validation.Required, validation.Min(1)),
		validation.Field(&c.Capacity, validation.Required, validation.Min(1)),
	)
}

// Validate validates the vault configuration.
func (c *VaultConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.DailyNoteFormat, validation.Required),
	)
}

// Validate validates one section override.
func (c *SectionConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Priority, validation.Min(0)),
		validation.Field(&c.Share, validation.Min(0.0), validation.Max(1.0)),
	)
}

func (c *GlobalConfig) validateSections() error {
	names := make([]string, 0, len(c.Sections))
	for name := range c.Sections {
		names = append(names, name)
	}
	sort.Strings(names)

	var errs []error
	for _, name := range names {
		if _, err := content.ParseSectionKind(name); err != nil {
			errs = append(errs, fmt.Errorf("sections: %w", err))
			continue
		}
		sc := c.Sections[name]
		if err := sc.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("sections.%s: %w", name, err))
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	total := 0.0
	for _, spec := range c.SectionSpecs() {
		total += spec.Share
	}
	if total > 1+shareTolerance {
		return fmt.Errorf("sections: shares sum to %.3f, must not exceed 1", total)
	}
	return nil
}
