package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// defaults are optional run settings read from a YAML file. A flag the
// operator set explicitly always wins over the file.
type defaults struct {
	Forks          int    `yaml:"forks"`
	ConnectTimeout string `yaml:"connect_timeout"`
	NoColor        bool   `yaml:"no_color"`
}

func loadDefaults(path string) (*defaults, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var d defaults
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return &d, nil
}

func applyDefaults(cmd *cobra.Command, d *defaults) error {
	if !cmd.Flags().Changed("forks") && d.Forks > 0 {
		forks = d.Forks
	}
	if !cmd.Flags().Changed("connect-timeout") && d.ConnectTimeout != "" {
		t, err := time.ParseDuration(d.ConnectTimeout)
		if err != nil {
			return fmt.Errorf("config connect_timeout: %w", err)
		}
		connectTimeout = t
	}
	if !cmd.Flags().Changed("no-color") && d.NoColor {
		noColor = true
	}
	return nil
}
