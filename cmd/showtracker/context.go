package main

import (
	"strings"
	"sync"

	"showtracker/pkg/config"
	"showtracker/pkg/initialization"
)

type commandContext struct {
	dataDirFlag *string

	once sync.Once
	comp *initialization.InitializedComponents
	err  error
}

func newCommandContext(dataDirFlag *string) *commandContext {
	return &commandContext{dataDirFlag: dataDirFlag}
}

// components bootstraps the application once per process.
func (c *commandContext) components() (*initialization.InitializedComponents, error) {
	c.once.Do(func() {
		var cfg *config.Config
		if c.dataDirFlag != nil && strings.TrimSpace(*c.dataDirFlag) != "" {
			cfg, c.err = config.LoadFrom(strings.TrimSpace(*c.dataDirFlag))
		} else {
			cfg, c.err = config.Load()
		}
		if c.err != nil {
			return
		}
		c.comp, c.err = initialization.BootstrapWith(cfg)
	})
	return c.comp, c.err
}

func (c *commandContext) close() {
	if c.comp != nil {
		c.comp.Close()
	}
}
