package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/ahrav/go-ielts/internal/config"
	"github.com/ahrav/go-ielts/internal/llm/configuration"
)

func newConfigCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show and change settings and API keys",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Show the effective configuration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				if _, err := c.loadConfig(); err != nil {
					return err
				}
				ks, err := c.keyStore()
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%s %s\n\n", cyan("File:"), c.cfg.Path())
				for _, key := range c.cfg.Keys() {
					v, _ := c.cfg.Get(key)
					if strings.HasSuffix(key, "password") && fmt.Sprint(v) != "" {
						v = "********"
					}
					fmt.Fprintf(out, "  %-38s %v\n", key, v)
				}
				fmt.Fprintln(out)
				fmt.Fprintln(out, bold("API keys"))
				for _, p := range configuration.ProviderNames() {
					key, found, err := ks.Get(p)
					switch {
					case err != nil:
						fmt.Fprintf(out, "  %-10s %s\n", p, red("unreadable"))
					case found:
						fmt.Fprintf(out, "  %-10s %s\n", p, config.MaskKey(key))
					default:
						fmt.Fprintf(out, "  %-10s %s\n", p, gray("not set"))
					}
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "set <key> <value>",
			Short: "Change a setting, e.g. 'config set provider google'",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				if _, err := c.loadConfig(); err != nil {
					return err
				}
				if err := c.cfg.Set(args[0], args[1]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", args[0], args[1])
				return nil
			},
		},
		&cobra.Command{
			Use:   "set-key <provider> [api-key]",
			Short: "Store an API key encrypted on disk",
			Long:  "Stores the key for a provider. Without an api-key argument the key is read from stdin.",
			Args:  cobra.RangeArgs(1, 2),
			RunE: func(cmd *cobra.Command, args []string) error {
				provider := args[0]
				if _, ok := configuration.Preset(provider); !ok {
					return fmt.Errorf("unknown provider %q (want one of %s)",
						provider, strings.Join(configuration.ProviderNames(), ", "))
				}
				var key string
				if len(args) == 2 {
					key = args[1]
				} else {
					var err error
					if key, err = readSecret(cmd, "API key for "+provider+": "); err != nil {
						return err
					}
				}
				ks, err := c.keyStore()
				if err != nil {
					return err
				}
				if err := ks.Set(provider, strings.TrimSpace(key)); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), green("Stored API key for "+provider))
				return nil
			},
		},
		&cobra.Command{
			Use:   "delete-key <provider>",
			Short: "Remove a stored API key",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				ks, err := c.keyStore()
				if err != nil {
					return err
				}
				removed, err := ks.Delete(args[0])
				if err != nil {
					return err
				}
				if !removed {
					fmt.Fprintln(cmd.OutOrStdout(), gray("No key stored for "+args[0]))
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Removed API key for "+args[0])
				return nil
			},
		},
	)
	return cmd
}

// readSecret reads a line without echo on a terminal, or a plain line
// from piped input.
func readSecret(cmd *cobra.Command, prompt string) (string, error) {
	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.OutOrStdout(), prompt)
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.OutOrStdout())
		if err != nil {
			return "", fmt.Errorf("read api key: %w", err)
		}
		return string(b), nil
	}
	var line string
	if _, err := fmt.Fscanln(cmd.InOrStdin(), &line); err != nil {
		return "", fmt.Errorf("read api key: %w", err)
	}
	return line, nil
}
