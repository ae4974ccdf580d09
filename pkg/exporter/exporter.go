// Package exporter moves artifact content in and out of plain formats (CSV for
// datasets, YAML for model parameters) and renders artifacts for humans.
package exporter

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"artifactvault/pkg/artifact"

	"gopkg.in/yaml.v3"
)

// ImportCSV 读取带表头的 CSV，返回列名和数据行
func ImportCSV(r io.Reader) ([]string, [][]string, error) {
	reader := csv.NewReader(r)

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, fmt.Errorf("csv is empty: header row is required")
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read csv header: %w", err)
	}

	// 列数不一致时 encoding/csv 会报错 (FieldsPerRecord 默认取第一行)
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read csv rows: %w", err)
	}
	return header, rows, nil
}

// ExportCSV 把数据集写回 CSV (表头 + 数据行)
func ExportCSV(ds *artifact.DatasetArtifact, w io.Writer) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(ds.Columns); err != nil {
		return err
	}
	if err := writer.WriteAll(ds.Rows); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}
	return nil
}

// ImportParams 读取 YAML 格式的模型参数: {name: [float, ...]}
func ImportParams(r io.Reader) (map[string][]float64, error) {
	var params map[string][]float64
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&params); err != nil {
		if errors.Is(err, io.EOF) {
			return map[string][]float64{}, nil
		}
		return nil, fmt.Errorf("failed to parse model params: %w", err)
	}
	return params, nil
}

// ExportParams 以 YAML 输出模型参数 (按参数名排序)
func ExportParams(m *artifact.ModelArtifact, w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(m.Params); err != nil {
		return fmt.Errorf("failed to encode model params: %w", err)
	}
	return enc.Close()
}
