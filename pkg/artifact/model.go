package artifact

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"artifactvault/pkg/batch"
	"artifactvault/pkg/types"
)

const (
	KindModel types.Kind = "Model"

	modelBlobFile = "model.cbor"
)

// ModelType 模型任务类型
type ModelType string

const (
	ModelClassification ModelType = "classification"
	ModelRegression     ModelType = "regression"
)

// ModelMeta 是模型的元数据 (模型签名)
type ModelMeta struct {
	Base `yaml:",inline"`

	Name                    string    `yaml:"name,omitempty" json:"name,omitempty"`
	ModelType               ModelType `yaml:"model_type" json:"model_type"`
	FeatureNames            []string  `yaml:"feature_names,omitempty" json:"feature_names,omitempty"`
	ClassificationLabels    []string  `yaml:"classification_labels,omitempty" json:"classification_labels,omitempty"`
	ClassificationThreshold float64   `yaml:"classification_threshold,omitempty" json:"classification_threshold,omitempty"`

	// BatchSize 预测时每批的行数，0 表示不分批
	BatchSize int `yaml:"batch_size,omitempty" json:"batch_size,omitempty"`
}

func (m *ModelMeta) Kind() types.Kind { return KindModel }

func (m *ModelMeta) Clone() Metadata {
	c := *m
	c.FeatureNames = cloneSlice(m.FeatureNames)
	c.ClassificationLabels = cloneSlice(m.ClassificationLabels)
	return &c
}

// PredictFunc 对一批特征行进行预测
type PredictFunc func(rows [][]float64) ([]float64, error)

// modelBlob 是 model.cbor 的磁盘格式
type modelBlob struct {
	Params map[string][]float64 `cbor:"p"`
}

// ModelArtifact 是一个训练好的模型
// Params 是模型参数；默认的预测函数把它当作线性模型 ("weights" + "bias")
type ModelArtifact struct {
	meta    *ModelMeta
	Params  map[string][]float64
	predict PredictFunc
}

// NewModel 创建一个新模型，分配新的 uuid
func NewModel(meta ModelMeta, params map[string][]float64) *ModelArtifact {
	if meta.UUID.IsZero() {
		meta.UUID = types.NewUUID()
	}
	return &ModelArtifact{
		meta:   meta.Clone().(*ModelMeta),
		Params: params,
	}
}

func (a *ModelArtifact) Kind() types.Kind { return KindModel }
func (a *ModelArtifact) UUID() types.UUID { return a.meta.UUID }
func (a *ModelArtifact) Meta() Metadata   { return a.meta }

// Signature 返回元数据的副本
func (a *ModelArtifact) Signature() ModelMeta { return *a.meta.Clone().(*ModelMeta) }

func (a *ModelArtifact) SetMeta(m Metadata) error {
	return setMeta(&a.meta, a.meta.UUID, m)
}

// WithPredictFunc 替换默认的线性预测函数
func (a *ModelArtifact) WithPredictFunc(fn PredictFunc) *ModelArtifact {
	a.predict = fn
	return a
}

func (a *ModelArtifact) SaveBlob(dir string) error {
	data, err := encodeBlob(modelBlob{Params: a.Params})
	if err != nil {
		return err
	}
	return writeBlobFile(dir, modelBlobFile, data)
}

// LoadModel 从缓存目录加载模型
func LoadModel(dir string, id types.UUID, meta Metadata) (Artifact, error) {
	mm, err := checkMeta[*ModelMeta](id, meta)
	if err != nil {
		return nil, err
	}

	data, found, err := readBlobFile(dir, modelBlobFile)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}

	var blob modelBlob
	if err := decodeBlob(data, &blob); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", modelBlobFile, err)
	}

	return &ModelArtifact{meta: mm.Clone().(*ModelMeta), Params: blob.Params}, nil
}

// Predict 按 meta.BatchSize 分批调用预测函数
func (a *ModelArtifact) Predict(rows [][]float64) ([]float64, error) {
	predict := a.predict
	if predict == nil {
		predict = a.linearPredict
	}

	out := make([]float64, 0, len(rows))
	err := batch.Each(rows, a.meta.BatchSize, func(b [][]float64) error {
		res, err := predict(b)
		if err != nil {
			return err
		}
		if len(res) != len(b) {
			return fmt.Errorf("predict returned %d results for %d rows", len(res), len(b))
		}
		out = append(out, res...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

var errNoWeights = errors.New("model has no weights parameter")

func (a *ModelArtifact) linearPredict(rows [][]float64) ([]float64, error) {
	weights, ok := a.Params["weights"]
	if !ok {
		return nil, errNoWeights
	}
	var bias float64
	if b := a.Params["bias"]; len(b) > 0 {
		bias = b[0]
	}

	out := make([]float64, len(rows))
	for i, row := range rows {
		if len(row) != len(weights) {
			return nil, fmt.Errorf("row %d has %d features, model expects %d", i, len(row), len(weights))
		}
		sum := bias
		for j, x := range row {
			sum += x * weights[j]
		}
		out[i] = sum
	}
	return out, nil
}

// ParamNames 返回参数名 (排序后)，用于展示
func (a *ModelArtifact) ParamNames() []string {
	return slices.Sorted(maps.Keys(a.Params))
}
