package cmd

import (
	"errors"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/dbops/users"
)

func newUsersCmd(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Query and update users",
	}

	cmd.AddCommand(newUsersGetCmd(s))
	cmd.AddCommand(newUsersListCmd(s))
	cmd.AddCommand(newUsersOlderThanCmd(s))
	cmd.AddCommand(newUsersUpdateEmailCmd(s))
	cmd.AddCommand(newUsersAvgAgeCmd(s))
	cmd.AddCommand(newUsersStreamCmd(s))
	return cmd
}

var getUsersExample = `
# Get one user
dbops users get 3f0c2b9e-6d0f-4a53-9d36-7e8a1f0e4c11

# Get several users concurrently
dbops users get <id> <id> <id> --concurrency 2`

func newUsersGetCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:     "get <id>...",
		Short:   "Get users by id",
		Example: getUsersExample,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := s.open(cmd.Context())
			if err != nil {
				return err
			}
			if len(args) == 1 {
				u, err := b.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd, u)
			}
			list, err := b.GetMany(cmd.Context(), args)
			if err != nil {
				return err
			}
			return printJSON(cmd, list)
		},
	}
}

func newUsersListCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := s.open(cmd.Context())
			if err != nil {
				return err
			}
			list, err := b.List(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, list)
		},
	}
}

func newUsersOlderThanCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "older-than <age>",
		Short: "List users older than age",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			age, err := strconv.Atoi(args[0])
			if err != nil {
				return errors.New("age must be an integer")
			}
			b, err := s.open(cmd.Context())
			if err != nil {
				return err
			}
			list, err := b.OlderThan(cmd.Context(), age)
			if err != nil {
				return err
			}
			return printJSON(cmd, list)
		},
	}
}

func newUsersUpdateEmailCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "update-email <id> <email>",
		Short: "Change a user's email inside a transaction",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := s.open(cmd.Context())
			if err != nil {
				return err
			}
			if err := b.UpdateEmail(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			return printJSON(cmd, map[string]string{"id": args[0], "email": args[1]})
		},
	}
}

func newUsersAvgAgeCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "avg-age",
		Short: "Compute the average age without loading every row",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := s.open(cmd.Context())
			if err != nil {
				return err
			}
			avg, err := b.AverageAge(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]float64{"average_age": avg})
		},
	}
}

func newUsersStreamCmd(s *session) *cobra.Command {
	var batch int

	cmd := &cobra.Command{
		Use:   "stream",
		Short: "Stream users as JSON lines, one batch per line",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := s.open(cmd.Context())
			if err != nil {
				return err
			}
			return b.Stream(cmd.Context(), batch, func(list []users.User) error {
				return printJSON(cmd, list)
			})
		},
	}

	cmd.Flags().IntVarP(&batch, "batch", "b", 1, "users per line")
	return cmd
}
