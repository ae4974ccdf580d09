package commands

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"artifactvault/pkg/artifact"
	"artifactvault/pkg/codec"
	"artifactvault/pkg/exporter"
	"artifactvault/pkg/types"

	"github.com/spf13/cobra"
)

var (
	paramsFile string
	csvFile    string
	codeFile   string
	defaults   []string
)

var uploadCmd = &cobra.Command{
	Use:   "upload <kind> <meta.yaml>",
	Short: "Save an artifact to the cache and publish it to the remote",
	Long: `Build an artifact from a metadata file plus its content and save it to the local cache.
Unless --offline is set (or no remote is configured) the blobs are pushed and the
metadata is registered with the server.

Content flags per kind:
  model    --params params.yaml   (name: [floats...])
  dataset  --csv data.csv         (header row required)
  test     --code test.py [--default arg=value ...]`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := parseKind(args[0])
		if err != nil {
			return err
		}

		// 1. 构建 Artifact
		a, err := buildArtifact(kind, args[1])
		if err != nil {
			return err
		}

		// 2. 选择模式：无远端时只保存到本地
		m, err := mode(false)
		if err != nil {
			return err
		}

		// 3. 上传
		id, err := AV.Manager.Upload(cmd.Context(), a, currentNamespace(), m)
		if err != nil {
			var upErr *artifact.UploadError
			if errors.As(err, &upErr) && upErr.BlobsPublished() {
				return fmt.Errorf("%w\nblobs are on the remote, retry with: av register %s %s", err, kind, upErr.UUID)
			}
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s %s\n", kind, id)
		if v := a.Meta().Common().Version; v > 0 {
			fmt.Fprintf(out, "registered as version %d\n", v)
		} else {
			fmt.Fprintln(out, "saved locally (not registered)")
		}
		return nil
	},
}

// buildArtifact 读取元数据草稿和内容文件，组装具体的 Artifact
func buildArtifact(kind types.Kind, metaPath string) (artifact.Artifact, error) {
	data, err := os.ReadFile(metaPath)
	if err != nil {
		return nil, err
	}
	meta, err := codec.DecodeDraft(data, kind)
	if err != nil {
		return nil, err
	}

	switch m := meta.(type) {
	case *artifact.ModelMeta:
		params := map[string][]float64{}
		if paramsFile != "" {
			f, err := os.Open(paramsFile)
			if err != nil {
				return nil, err
			}
			defer f.Close()
			if params, err = exporter.ImportParams(f); err != nil {
				return nil, err
			}
		}
		return artifact.NewModel(*m, params), nil

	case *artifact.DatasetMeta:
		if csvFile == "" {
			return nil, fmt.Errorf("dataset requires --csv")
		}
		f, err := os.Open(csvFile)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		header, rows, err := exporter.ImportCSV(f)
		if err != nil {
			return nil, err
		}
		return artifact.NewDataset(*m, header, rows)

	case *artifact.TestMeta:
		if codeFile == "" {
			return nil, fmt.Errorf("test requires --code")
		}
		code, err := os.ReadFile(codeFile)
		if err != nil {
			return nil, err
		}
		defs, err := parseDefaults(defaults)
		if err != nil {
			return nil, err
		}
		return artifact.NewTest(*m, string(code), defs)

	default:
		return nil, fmt.Errorf("%w: %s", artifact.ErrUnknownKind, kind)
	}
}

func parseDefaults(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --default %q, want arg=value", p)
		}
		out[k] = v
	}
	return out, nil
}

func init() {
	uploadCmd.Flags().StringVar(&paramsFile, "params", "", "model parameters (YAML)")
	uploadCmd.Flags().StringVar(&csvFile, "csv", "", "dataset rows (CSV with header)")
	uploadCmd.Flags().StringVar(&codeFile, "code", "", "test source file")
	uploadCmd.Flags().StringArrayVar(&defaults, "default", nil, "test argument default (arg=value), repeatable")
	rootCmd.AddCommand(uploadCmd)
}
