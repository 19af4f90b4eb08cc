package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/dbops/health"
)

var errUnhealthy = errors.New("database is unhealthy")

func newHealthCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Acquire and probe a database connection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := s.open(cmd.Context())
			if err != nil {
				return err
			}
			results, err := b.Health(cmd.Context())
			if err != nil {
				return err
			}

			overall := health.Overall(results)
			if err := printJSON(cmd, map[string]any{"status": overall, "checks": results}); err != nil {
				return err
			}
			if overall == health.StatusUnhealthy {
				return errUnhealthy
			}
			return nil
		},
	}
}
