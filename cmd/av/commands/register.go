package commands

import (
	"fmt"

	"artifactvault/pkg/manager"

	"github.com/spf13/cobra"
)

var registerCmd = &cobra.Command{
	Use:   "register <kind> <uuid>",
	Short: "Retry metadata registration of a cached artifact",
	Long: `Re-register the metadata of an artifact whose blobs are already on the remote.
Use it after an upload failed in the register-meta phase. Blobs are not pushed again.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, id, err := parseTarget(args)
		if err != nil {
			return err
		}
		if offline {
			return fmt.Errorf("register needs the remote, drop --offline")
		}
		if _, err := mode(true); err != nil {
			return err
		}

		// 1. 从本地缓存加载 (不访问网络)
		ns := currentNamespace()
		a, err := AV.Manager.Download(cmd.Context(), kind, id, ns, manager.LocalOnly())
		if err != nil {
			return err
		}

		// 2. 只重试元数据阶段
		if err := AV.Manager.RegisterMetadata(cmd.Context(), a, ns, AV.Remote); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s registered as version %d\n", kind, id, a.Meta().Common().Version)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(registerCmd)
}
