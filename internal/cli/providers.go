package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nhle/swipemail/internal/source/email"
)

func newProvidersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List IMAP provider presets",
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tHOST\tPORT\tTLS")
			for _, name := range email.ProviderNames() {
				p, _ := email.LookupProvider(name)
				fmt.Fprintf(tw, "%s\t%s\t%d\t%t\n", name, p.Host, p.Port, p.TLS)
			}
			return tw.Flush()
		},
	}
}
