package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nhle/swipemail/internal/seed"
)

func newSeedCmd(opts *globalOptions) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load a sample inbox into the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			created, err := seed.Seed(cmd.Context(), s, time.Now(), force)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d sample messages into %s\n", len(created), opts.cfg.Database.Path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "seed even if the database already has messages")

	return cmd
}
