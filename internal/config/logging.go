package config

import (
	"fmt"

	"starsorter/internal/logging"
)

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level      string          `yaml:"level" json:"level,omitempty"`           // debug, info, warn, error
	Format     string          `yaml:"format" json:"format,omitempty"`         // console, json
	File       string          `yaml:"file" json:"file,omitempty"`             // empty = stderr
	Categories map[string]bool `yaml:"categories" json:"categories,omitempty"` // Per-category toggles
}

// IsCategoryEnabled returns whether logging is enabled for a category.
// Categories not listed are enabled.
func (c *LoggingConfig) IsCategoryEnabled(category string) bool {
	enabled, exists := c.Categories[category]
	return !exists || enabled
}

// Validate checks the level, format and category names.
func (c *LoggingConfig) Validate() error {
	if _, err := logging.ParseLevel(c.Level); err != nil {
		return err
	}
	switch c.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("unknown format %q (valid: console, json)", c.Format)
	}
	for name := range c.Categories {
		known := false
		for _, cat := range logging.AllCategories {
			if string(cat) == name {
				known = true
				break
			}
		}
		if !known {
			return fmt.Errorf("unknown category %q", name)
		}
	}
	return nil
}

// ToLogging converts the section into the logger's own config.
func (c *LoggingConfig) ToLogging() logging.Config {
	return logging.Config{
		Level:      c.Level,
		Format:     c.Format,
		Output:     c.File,
		Categories: c.Categories,
	}
}
