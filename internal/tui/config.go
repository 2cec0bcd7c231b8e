package tui

import (
	"time"

	"github.com/Veraticus/edc-mapper/internal/tui/themes"
)

// Config holds TUI configuration.
type Config struct {
	Theme          themes.Theme
	RefreshTimeout time.Duration
	Width          int
	Height         int
	ActivityRows   int
	ShowHelp       bool
}

// Option is a functional option for configuring the TUI.
type Option func(*Config)

func defaultConfig() Config {
	return Config{
		Theme:          themes.Default,
		Width:          100,
		Height:         30,
		ActivityRows:   10,
		RefreshTimeout: 30 * time.Second,
		ShowHelp:       true,
	}
}

// WithTheme sets the visual theme.
func WithTheme(theme themes.Theme) Option {
	return func(c *Config) {
		c.Theme = theme
	}
}

// WithSize sets the initial terminal size.
func WithSize(width, height int) Option {
	return func(c *Config) {
		c.Width = width
		c.Height = height
	}
}

// WithActivityRows sets how many activity entries are visible at once.
func WithActivityRows(rows int) Option {
	return func(c *Config) {
		if rows > 0 {
			c.ActivityRows = rows
		}
	}
}
