package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ahrav/go-ielts/internal/llm"
)

func newPromptCmd(c *cli) *cobra.Command {
	var difficulty string
	cmd := &cobra.Command{
		Use:   "prompt",
		Short: "Generate a Writing Task 2 prompt without starting a session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := c.llmClient(cmd.Context())
			if err != nil {
				return err
			}
			prompt, err := client.GeneratePrompt(cmd.Context(), difficulty)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), wrap(prompt, terminalWidth(), ""))
			return nil
		},
	}
	cmd.Flags().StringVar(&difficulty, "difficulty", "medium", "easy, medium, or hard")
	return cmd
}

func newTestConnectionCmd(c *cli) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "test-connection",
		Short: "Check that the configured provider answers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if all {
				return testAllProviders(cmd, c)
			}
			client, err := c.llmClient(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Testing %s (%s)...\n", bold(client.Provider()), client.Model())
			msg, err := client.TestConnection(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), green(msg))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&all, "all", "a", false, "test every provider, reporting those without a key")
	return cmd
}

func testAllProviders(cmd *cobra.Command, c *cli) error {
	llmCfg, err := c.llmConfig()
	if err != nil {
		return err
	}
	opts, err := c.llmOptions(llmCfg)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	failed := 0
	for _, check := range llm.CheckProviders(cmd.Context(), llmCfg, opts...) {
		status := green("ok")
		switch {
		case check.Message == llm.NotConfiguredMessage:
			status = gray("skipped")
		case !check.OK:
			status = red("failed")
			failed++
		}
		fmt.Fprintf(out, "%-8s %-18s %-8s %s\n", check.Provider, check.Model, status, check.Message)
	}
	if failed > 0 {
		return fmt.Errorf("%d provider(s) failed the connection test", failed)
	}
	return nil
}
