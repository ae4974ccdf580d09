package exporter

import (
	"bytes"
	"strings"
	"testing"

	"artifactvault/pkg/artifact"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSV_RoundTrip(t *testing.T) {
	input := "age,income,label\n31,5200,1\n45,\"7,100\",0\n"

	header, rows, err := ImportCSV(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []string{"age", "income", "label"}, header)
	require.Len(t, rows, 2)
	assert.Equal(t, "7,100", rows[1][1], "带引号的字段保持原样")

	ds, err := artifact.NewDataset(artifact.DatasetMeta{Name: "credit"}, header, rows)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, ExportCSV(ds, &out))
	assert.Equal(t, input, out.String())
}

func TestImportCSV_Errors(t *testing.T) {
	_, _, err := ImportCSV(strings.NewReader(""))
	assert.ErrorContains(t, err, "header row is required")

	_, _, err = ImportCSV(strings.NewReader("a,b\n1,2,3\n"))
	assert.Error(t, err, "列数不一致必须失败")
}

func TestParams_RoundTrip(t *testing.T) {
	m := artifact.NewModel(artifact.ModelMeta{ModelType: artifact.ModelRegression}, map[string][]float64{
		"weights": {0.5, -1.25},
		"bias":    {3},
	})

	var out bytes.Buffer
	require.NoError(t, ExportParams(m, &out))
	assert.True(t, strings.HasPrefix(out.String(), "bias:"), "参数名按字典序输出")

	params, err := ImportParams(&out)
	require.NoError(t, err)
	assert.Equal(t, m.Params, params)
}

func TestImportParams_Errors(t *testing.T) {
	params, err := ImportParams(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, params)

	_, err = ImportParams(strings.NewReader("weights: [a, b]\n"))
	assert.Error(t, err)
}
