package cmd

import (
	"bytes"
	_ "embed"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/dbops/users"
)

//go:embed sample_users.csv
var sampleUsers []byte

var seedExample = `
# Create the users table and load the bundled sample rows
dbops seed

# Load rows from a CSV file with name,email,age columns
dbops seed --file user_data.csv`

func newSeedCmd(s *session) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:     "seed",
		Short:   "Create the users table and upsert rows from CSV",
		Example: seedExample,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = bytes.NewReader(sampleUsers)
			if file != "" {
				f, err := os.Open(file)
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}

			rows, err := users.ParseCSV(r)
			if err != nil {
				return err
			}

			b, err := s.open(cmd.Context())
			if err != nil {
				return err
			}
			n, err := b.Seed(cmd.Context(), rows)
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]int{"seeded": n})
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "CSV file to load (default: bundled sample)")
	return cmd
}
