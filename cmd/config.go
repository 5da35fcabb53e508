package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/voidreamer/maya-usd-author/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the authoring options file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with the default options",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if path == "" {
			p, err := config.DefaultPath()
			if err != nil {
				return err
			}
			path = p
		}
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists at %s", path)
		}
		if err := config.WriteFile(path, config.Defaults()); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective options as HCL",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := config.Load(configPath)
		if err != nil {
			return err
		}
		fmt.Print(config.Render(opts))
		return nil
	},
}

func init() {
	configCmd.AddCommand(configInitCmd, configShowCmd)
	rootCmd.AddCommand(configCmd)
}
