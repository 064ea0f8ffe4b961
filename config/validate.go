package config

import "github.com/teranos/stam/errors"

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	// Milestone interval: 0 = text default, negative = invalid
	if c.Store.MilestoneInterval < 0 {
		return errors.Newf("store.milestone_interval must be >= 0, got %d", c.Store.MilestoneInterval)
	}

	// An empty annotation_id_prefix is valid and means no IDs are assigned
	if c.Alignment.MaxErrors < 0 {
		return errors.Newf("alignment.max_errors must be >= 0, got %d", c.Alignment.MaxErrors)
	}
	if c.Alignment.MinimalAlignLength < 0 {
		return errors.Newf("alignment.minimal_align_length must be >= 0, got %d", c.Alignment.MinimalAlignLength)
	}
	if c.Alignment.Workers < 0 {
		return errors.Newf("alignment.workers must be >= 0, got %d", c.Alignment.Workers)
	}

	if c.Log.Verbosity < 0 {
		return errors.Newf("log.verbosity must be >= 0, got %d", c.Log.Verbosity)
	}
	return nil
}
