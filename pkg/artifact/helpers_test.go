package artifact

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// -----------------------------------------------------------------------------
// 辅助工具
// -----------------------------------------------------------------------------

func mustNewDataset(t *testing.T, meta DatasetMeta, columns []string, rows [][]string) *DatasetArtifact {
	t.Helper()
	ds, err := NewDataset(meta, columns, rows)
	require.NoError(t, err)
	return ds
}

// writeDatasetBlob 绕过 NewDataset 的校验直接写出 Blob，模拟损坏或被篡改的缓存
func writeDatasetBlob(t *testing.T, dir string, blob datasetBlob) {
	t.Helper()
	ds := &DatasetArtifact{meta: &DatasetMeta{}, Columns: blob.Columns, Rows: blob.Rows}
	require.NoError(t, ds.SaveBlob(dir))
}

// mustReadDir 读取目录下所有文件内容，用于比较磁盘状态
func mustReadDir(t *testing.T, dir string) map[string][]byte {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)

	out := make(map[string][]byte, len(entries))
	for _, e := range entries {
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		require.NoError(t, err)
		out[e.Name()] = data
	}
	return out
}

func sampleModel() *ModelArtifact {
	return NewModel(ModelMeta{
		Name:         "credit-lr",
		ModelType:    ModelRegression,
		FeatureNames: []string{"one", "two"},
	}, map[string][]float64{
		"weights": {2, 3},
		"bias":    {1},
	})
}
