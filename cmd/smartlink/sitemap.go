package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newSitemapCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sitemap",
		Short: "Build the sitemap and write it to the configured blob store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := resolveEnv(cmd.Context())
			if err != nil {
				return err
			}
			svc, err := newService(cmd.Context(), e.cfg, e.logger)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			defer func() {
				if cerr := svc.Close(cmd.Context()); cerr != nil {
					e.logger.Warn("failed to close application services", zap.Error(cerr))
				}
			}()

			location, err := svc.PublishSitemap(cmd.Context())
			if err != nil {
				return fmt.Errorf("publish sitemap: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), location)
			return nil
		},
	}
}
