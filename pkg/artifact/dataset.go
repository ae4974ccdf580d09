package artifact

import (
	"fmt"
	"maps"
	"slices"

	"artifactvault/pkg/types"

	"github.com/klauspost/compress/zstd"
)

const (
	KindDataset types.Kind = "Dataset"

	datasetBlobFile = "data.cbor.zst"
)

// DatasetMeta 是数据集的元数据 (Schema)
type DatasetMeta struct {
	Base `yaml:",inline"`

	Name        string            `yaml:"name,omitempty" json:"name,omitempty"`
	Target      string            `yaml:"target,omitempty" json:"target,omitempty"`
	ColumnTypes map[string]string `yaml:"column_types,omitempty" json:"column_types,omitempty"`
	RowCount    int               `yaml:"row_count" json:"row_count"`
}

func (m *DatasetMeta) Kind() types.Kind { return KindDataset }

func (m *DatasetMeta) Clone() Metadata {
	c := *m
	c.ColumnTypes = cloneMap(m.ColumnTypes)
	return &c
}

// datasetBlob 是 data.cbor.zst 解压后的格式 (按行存储)
type datasetBlob struct {
	Columns []string   `cbor:"c"`
	Rows    [][]string `cbor:"r"`
}

// DatasetArtifact 是一个表格数据集
type DatasetArtifact struct {
	meta    *DatasetMeta
	Columns []string
	Rows    [][]string
}

// NewDataset 创建数据集，RowCount 和缺省的列类型由数据推导
func NewDataset(meta DatasetMeta, columns []string, rows [][]string) (*DatasetArtifact, error) {
	if err := checkShape(columns, rows); err != nil {
		return nil, err
	}
	for col := range meta.ColumnTypes {
		if !slices.Contains(columns, col) {
			return nil, fmt.Errorf("column type given for unknown column %q", col)
		}
	}
	if meta.Target != "" && !slices.Contains(columns, meta.Target) {
		return nil, fmt.Errorf("target column %q not in dataset", meta.Target)
	}

	if meta.UUID.IsZero() {
		meta.UUID = types.NewUUID()
	}
	meta.RowCount = len(rows)

	// 不修改调用方的 map
	columnTypes := make(map[string]string, len(columns))
	for _, col := range columns {
		columnTypes[col] = "text"
		if t, ok := meta.ColumnTypes[col]; ok {
			columnTypes[col] = t
		}
	}
	meta.ColumnTypes = columnTypes

	return &DatasetArtifact{
		meta:    meta.Clone().(*DatasetMeta),
		Columns: columns,
		Rows:    rows,
	}, nil
}

// checkShape 列名唯一，且每一行的宽度与列数一致
func checkShape(columns []string, rows [][]string) error {
	seen := make(map[string]struct{}, len(columns))
	for _, col := range columns {
		if _, dup := seen[col]; dup {
			return fmt.Errorf("duplicate column %q", col)
		}
		seen[col] = struct{}{}
	}
	for i, row := range rows {
		if len(row) != len(columns) {
			return fmt.Errorf("row %d has %d values, expected %d columns", i, len(row), len(columns))
		}
	}
	return nil
}

func (a *DatasetArtifact) Kind() types.Kind { return KindDataset }
func (a *DatasetArtifact) UUID() types.UUID { return a.meta.UUID }
func (a *DatasetArtifact) Meta() Metadata   { return a.meta }

func (a *DatasetArtifact) SetMeta(m Metadata) error {
	return setMeta(&a.meta, a.meta.UUID, m)
}

// Column 返回某一列的所有值
func (a *DatasetArtifact) Column(name string) ([]string, bool) {
	idx := slices.Index(a.Columns, name)
	if idx < 0 {
		return nil, false
	}
	out := make([]string, len(a.Rows))
	for i, row := range a.Rows {
		out[i] = row[idx]
	}
	return out, true
}

// sameColumns 列集合与 column_types 的 key 集合完全相同
func sameColumns(columns []string, columnTypes map[string]string) bool {
	if len(columns) != len(columnTypes) {
		return false
	}
	for _, col := range columns {
		if _, ok := columnTypes[col]; !ok {
			return false
		}
	}
	return true
}

func (a *DatasetArtifact) SaveBlob(dir string) error {
	raw, err := encodeBlob(datasetBlob{Columns: a.Columns, Rows: a.Rows})
	if err != nil {
		return err
	}

	// EncodeAll 在输入相同时输出确定，满足幂等重存
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	defer enc.Close()

	return writeBlobFile(dir, datasetBlobFile, enc.EncodeAll(raw, nil))
}

// LoadDataset 从缓存目录加载数据集
func LoadDataset(dir string, id types.UUID, meta Metadata) (Artifact, error) {
	dsMeta, err := checkMeta[*DatasetMeta](id, meta)
	if err != nil {
		return nil, err
	}

	compressed, found, err := readBlobFile(dir, datasetBlobFile)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	defer dec.Close()

	raw, err := dec.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress %s: %w", datasetBlobFile, err)
	}

	var blob datasetBlob
	if err := decodeBlob(raw, &blob); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", datasetBlobFile, err)
	}

	// 解码成功不代表 Blob 完整：行宽、行数、列集合都必须与元数据一致
	if err := checkShape(blob.Columns, blob.Rows); err != nil {
		return nil, fmt.Errorf("corrupt %s: %w", datasetBlobFile, err)
	}
	if len(blob.Rows) != dsMeta.RowCount {
		return nil, fmt.Errorf("dataset blob has %d rows, metadata says %d", len(blob.Rows), dsMeta.RowCount)
	}
	if !sameColumns(blob.Columns, dsMeta.ColumnTypes) {
		return nil, fmt.Errorf("dataset blob columns %v do not match metadata column_types %v",
			blob.Columns, slices.Sorted(maps.Keys(dsMeta.ColumnTypes)))
	}

	return &DatasetArtifact{
		meta:    dsMeta.Clone().(*DatasetMeta),
		Columns: blob.Columns,
		Rows:    blob.Rows,
	}, nil
}
