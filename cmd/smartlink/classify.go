package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/smartlink-preview/internal/bot"
)

func newClassifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify <user-agent>",
		Short: "Report whether a User-Agent would receive the crawler preview",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := resolveEnv(cmd.Context())
			if err != nil {
				return err
			}
			ua := strings.Join(args, " ")
			classifier := bot.New(e.cfg.Preview.ExtraBotTokens...)
			if token, ok := classifier.Match(ua); ok {
				fmt.Fprintf(cmd.OutOrStdout(), "bot (matched %q)\n", token)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), "human")
			return nil
		},
	}
}
