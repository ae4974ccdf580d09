package meta

import (
	"context"
	"testing"

	"artifactvault/pkg/artifact"
	"artifactvault/pkg/remote"
	"artifactvault/pkg/types"

	"github.com/stretchr/testify/require"
)

// -----------------------------------------------------------------------------
// 通用辅助函数 (Helpers)
// -----------------------------------------------------------------------------

func newModelMeta(name string) *artifact.ModelMeta {
	return &artifact.ModelMeta{
		Base:      artifact.Base{UUID: types.NewUUID()},
		Name:      name,
		ModelType: artifact.ModelRegression,
		BatchSize: 20,
	}
}

func endpointOf(t *testing.T, meta artifact.Metadata, ns types.Namespace) string {
	t.Helper()
	ep, err := remote.MetaEndpoint(meta.Kind(), meta.GetUUID(), ns)
	require.NoError(t, err)
	return ep
}

// mustRegister 注册失败直接终止测试
func mustRegister(t *testing.T, repo *Repository, endpoint string, meta artifact.Metadata, msgAndArgs ...any) *ArtifactRecord {
	t.Helper()
	rec, err := repo.Register(context.Background(), endpoint, meta)
	require.NoError(t, err, msgAndArgs...)
	return rec
}
