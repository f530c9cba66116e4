package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sagarc03/switchboard/acl"
	"github.com/sagarc03/switchboard/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter configuration file",
	Long: `Write a starter configuration file. By default the main settings are
asked for interactively; --yes writes the defaults as they are.`,
	Annotations: map[string]string{skipConfig: "true"},
	RunE:        runInit,
}

var (
	initOutput string
	initYes    bool
	initForce  bool
)

func init() {
	initCmd.Flags().StringVarP(&initOutput, "output", "o", "config.yaml", "file to write")
	initCmd.Flags().BoolVarP(&initYes, "yes", "y", false, "write defaults without prompting")
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "overwrite an existing file")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(initOutput); err == nil && !initForce {
		if initYes {
			return fmt.Errorf("%s already exists (use --force to overwrite)", initOutput)
		}
		prompt := promptui.Prompt{
			Label:     fmt.Sprintf("%s already exists. Overwrite it", initOutput),
			IsConfirm: true,
		}
		if _, err := prompt.Run(); err != nil {
			fmt.Fprintln(cmd.OutOrStdout(), "Cancelled.")
			return nil //nolint:nilerr // User cancelled, not an error
		}
	}

	cfg := config.Default()
	if !initYes {
		if err := promptConfig(cfg); err != nil {
			return handlePromptError(cmd, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(initOutput, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", initOutput)
	return nil
}

func promptConfig(cfg *config.Config) error {
	host, err := (&promptui.Prompt{Label: "Listen host", Default: cfg.Server.Host}).Run()
	if err != nil {
		return err
	}
	cfg.Server.Host = host

	port, err := (&promptui.Prompt{
		Label:   "Listen port",
		Default: strconv.Itoa(cfg.Server.Port),
		Validate: func(input string) error {
			n, err := strconv.Atoi(input)
			if err != nil || n < 0 || n > 65535 {
				return errors.New("port must be between 0 and 65535")
			}
			return nil
		},
	}).Run()
	if err != nil {
		return err
	}
	cfg.Server.Port, _ = strconv.Atoi(port)

	_, listener, err := (&promptui.Select{Label: "Listener", Items: []string{"native", "http"}}).Run()
	if err != nil {
		return err
	}
	cfg.Server.Listener = listener

	dir, err := (&promptui.Prompt{Label: "Content base directory", Default: cfg.Content.BaseDirectory}).Run()
	if err != nil {
		return err
	}
	cfg.Content.BaseDirectory = dir

	_, mode, err := (&promptui.Select{
		Label: "Access control",
		Items: []string{string(acl.DefaultPermit), string(acl.DefaultDeny)},
	}).Run()
	if err != nil {
		return err
	}
	cfg.Access.Mode = mode
	if mode == string(acl.DefaultDeny) {
		cfg.Access.Permit = []string{"127.0.0.1", "::1"}
	}

	_, authMode, err := (&promptui.Select{
		Label: "Authentication",
		Items: []string{"none", "basic", "presigned", "any"},
	}).Run()
	if err != nil {
		return err
	}
	cfg.Auth.Mode = authMode
	if authMode != "none" {
		keys, err := (&promptui.Prompt{Label: "Access keys file", Default: "keys.yaml"}).Run()
		if err != nil {
			return err
		}
		cfg.Auth.Keys.File = keys
	}

	metrics, err := (&promptui.Prompt{Label: "Expose Prometheus metrics", IsConfirm: true}).Run()
	cfg.Metrics.Enabled = err == nil && (metrics == "y" || metrics == "Y")
	if errors.Is(err, promptui.ErrInterrupt) {
		return err
	}
	return nil
}

func handlePromptError(cmd *cobra.Command, err error) error {
	if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrAbort) {
		fmt.Fprintln(cmd.OutOrStdout(), "Cancelled.")
		return nil
	}
	return err
}
