package commands

import (
	"artifactvault/pkg/exporter"

	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show <kind> <uuid>",
	Short: "Print an artifact summary",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, id, err := parseTarget(args)
		if err != nil {
			return err
		}
		m, err := mode(false)
		if err != nil {
			return err
		}

		a, err := AV.Manager.Download(cmd.Context(), kind, id, currentNamespace(), m)
		if err != nil {
			return err
		}
		return exporter.PrintArtifact(a, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(showCmd)
}
