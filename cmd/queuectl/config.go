package main

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/queuectl/queuectl/internal/config"
)

func newConfigCmd(cfg *config.Store) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Read and write persisted configuration",
	}

	getCmd := &cobra.Command{
		Use:   "get [key]",
		Short: "Print one configuration value, or all of them",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				key := args[0]
				v, ok, err := cfg.Get(key)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("unknown config key: %s", key)
				}
				fmt.Printf("%s: %v\n", key, v)
				return nil
			}

			all, err := cfg.All()
			if err != nil {
				return err
			}
			keys := make([]string, 0, len(all))
			for k := range all {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Printf("%s: %v\n", k, all[k])
			}
			return nil
		},
	}

	setCmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			value := parseScalar(args[1])
			if err := cfg.Set(key, value); err != nil {
				return err
			}
			fmt.Printf("Configuration updated: %s = %v\n", key, value)
			return nil
		},
	}

	configCmd.AddCommand(getCmd, setCmd)
	return configCmd
}

// parseScalar stores numeric-looking values as numbers so typed getters see
// them without string coercion.
func parseScalar(s string) any {
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}
