package commands

import (
	"fmt"

	"artifactvault/pkg/artifact"
	"artifactvault/pkg/exporter"
	"artifactvault/pkg/types"

	"github.com/spf13/cobra"
)

var (
	allNamespaces bool
	fromRegistry  bool
	listLimit     int
)

var lsCmd = &cobra.Command{
	Use:   "ls [kind]",
	Short: "List cached artifacts",
	Long: `List artifacts in the local cache. With --registry, list what the server has
registered in the current namespace instead (newest first).`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kinds := artifact.Kinds()
		if len(args) == 1 {
			kind, err := parseKind(args[0])
			if err != nil {
				return err
			}
			kinds = []types.Kind{kind}
		}

		var (
			entries []exporter.Entry
			err     error
		)
		if fromRegistry {
			entries, err = listRegistry(cmd, kinds)
		} else {
			entries, err = listCache(kinds)
		}
		if err != nil {
			return err
		}

		exporter.PrintEntries(entries, cmd.OutOrStdout())
		return nil
	},
}

// listCache 只读本地缓存，不访问网络
func listCache(kinds []types.Kind) ([]exporter.Entry, error) {
	store := AV.Manager.Store()
	namespaces := []types.Namespace{currentNamespace()}
	if allNamespaces {
		var err error
		if namespaces, err = store.Namespaces(); err != nil {
			return nil, err
		}
	}

	var entries []exporter.Entry
	for _, ns := range namespaces {
		for _, kind := range kinds {
			ids, err := store.List(ns, kind)
			if err != nil {
				return nil, err
			}
			for _, id := range ids {
				dir, err := store.Path(ns, kind, id)
				if err != nil {
					return nil, err
				}
				entry := exporter.Entry{Namespace: ns, Kind: kind, UUID: id, Dir: dir}
				// 元数据损坏的条目依然列出，版本显示为 unregistered
				if meta, err := store.ReadMetadataIfPresent(dir, kind); err == nil && meta != nil {
					entry.Version = meta.Common().Version
				}
				entries = append(entries, entry)
			}
		}
	}
	return entries, nil
}

// listRegistry 查询服务端注册表
func listRegistry(cmd *cobra.Command, kinds []types.Kind) ([]exporter.Entry, error) {
	if offline {
		return nil, fmt.Errorf("--registry needs the remote, drop --offline")
	}
	if allNamespaces {
		return nil, fmt.Errorf("--all is not supported with --registry")
	}
	if _, err := mode(true); err != nil {
		return nil, err
	}

	ns := currentNamespace()
	var entries []exporter.Entry
	for _, kind := range kinds {
		records, err := AV.Remote.ListRegistered(cmd.Context(), ns, kind, listLimit)
		if err != nil {
			return nil, err
		}
		for _, rec := range records {
			entries = append(entries, exporter.Entry{
				Namespace: ns,
				Kind:      kind,
				UUID:      types.UUID(rec.UUID),
				Version:   rec.Version,
			})
		}
	}
	return entries, nil
}

func init() {
	lsCmd.Flags().BoolVarP(&allNamespaces, "all", "A", false, "list every namespace in the cache")
	lsCmd.Flags().BoolVar(&fromRegistry, "registry", false, "list the server registry instead of the local cache")
	lsCmd.Flags().IntVar(&listLimit, "limit", 0, "maximum records per kind with --registry (server default when 0)")
	rootCmd.AddCommand(lsCmd)
}
