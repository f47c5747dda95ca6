package main

import (
	"errors"
	"fmt"

	flag "github.com/spf13/pflag"
)

// runConfig prints the effective configuration as YAML.
func runConfig(args []string, env *Environment) error {
	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	var path string
	fs.StringVarP(&path, "config", "c", "", "config file name or path")

	if err := parseFlagSet(fs, args, printConfigUsage, env.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := loadConfig(path)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	data, err := cfg.Marshal()
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	_, err = env.Stdout.Write(data)
	return err
}
