package commands

import (
	"errors"
	"fmt"
	"io"
	"os"

	"artifactvault/pkg/artifact"
	"artifactvault/pkg/client"
	"artifactvault/pkg/exporter"

	"github.com/spf13/cobra"
)

var exportPath string

var downloadCmd = &cobra.Command{
	Use:   "download <kind> <uuid>",
	Short: "Fetch an artifact into the local cache",
	Long: `Resolve an artifact through the local cache, pulling blobs from the remote on a miss.
With --export the content is also written out: datasets as CSV, model
parameters as YAML, tests as source code. Use "-" for stdout.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, id, err := parseTarget(args)
		if err != nil {
			return err
		}
		m, err := mode(false)
		if err != nil {
			return err
		}

		ns := currentNamespace()
		a, err := AV.Manager.Download(cmd.Context(), kind, id, ns, m)
		if err != nil {
			if client.IsNotFound(err) {
				return fmt.Errorf("%s %s not found in namespace %s: %w", kind, id, ns.OrGlobal(), err)
			}
			var corrupt *artifact.CorruptArtifactError
			if errors.As(err, &corrupt) {
				return fmt.Errorf("%w\nremove the entry with: av cache rm %s %s", err, kind, id)
			}
			return err
		}

		if exportPath != "" {
			return exportArtifact(a, exportPath, cmd.OutOrStdout())
		}

		dir, err := AV.Manager.CachePath(kind, id, ns)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), dir)
		return nil
	},
}

func exportArtifact(a artifact.Artifact, path string, stdout io.Writer) error {
	w := stdout
	if path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}

	switch v := a.(type) {
	case *artifact.DatasetArtifact:
		return exporter.ExportCSV(v, w)
	case *artifact.ModelArtifact:
		return exporter.ExportParams(v, w)
	case *artifact.TestArtifact:
		_, err := io.WriteString(w, v.Code)
		return err
	default:
		return fmt.Errorf("cannot export %s", a.Kind())
	}
}

func init() {
	downloadCmd.Flags().StringVarP(&exportPath, "export", "o", "", "write the artifact content to this file (- for stdout)")
	rootCmd.AddCommand(downloadCmd)
}
