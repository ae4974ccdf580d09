package artifact

import (
	"fmt"

	"artifactvault/pkg/types"
)

const (
	KindTest types.Kind = "Test"

	testBlobFile = "test.cbor"
)

// TestMeta 描述一个可复用的测试定义
type TestMeta struct {
	Base `yaml:",inline"`

	Name        string            `yaml:"name" json:"name"`
	DisplayName string            `yaml:"display_name,omitempty" json:"display_name,omitempty"`
	Module      string            `yaml:"module,omitempty" json:"module,omitempty"`
	Tags        []string          `yaml:"tags,omitempty" json:"tags,omitempty"`
	Args        map[string]string `yaml:"args,omitempty" json:"args,omitempty"` // 参数名 -> 类型名
}

func (m *TestMeta) Kind() types.Kind { return KindTest }

func (m *TestMeta) Clone() Metadata {
	c := *m
	c.Tags = cloneSlice(m.Tags)
	c.Args = cloneMap(m.Args)
	return &c
}

type testBlob struct {
	Code     string            `cbor:"code"`
	Defaults map[string]string `cbor:"defaults,omitempty"`
}

// TestArtifact 是测试定义：源码加默认参数
type TestArtifact struct {
	meta     *TestMeta
	Code     string
	Defaults map[string]string
}

func NewTest(meta TestMeta, code string, defaults map[string]string) (*TestArtifact, error) {
	if meta.Name == "" {
		return nil, fmt.Errorf("test name is required")
	}
	for arg := range defaults {
		if _, ok := meta.Args[arg]; !ok {
			return nil, fmt.Errorf("default for undeclared argument %q", arg)
		}
	}
	if meta.UUID.IsZero() {
		meta.UUID = types.NewUUID()
	}
	return &TestArtifact{
		meta:     meta.Clone().(*TestMeta),
		Code:     code,
		Defaults: defaults,
	}, nil
}

func (a *TestArtifact) Kind() types.Kind { return KindTest }
func (a *TestArtifact) UUID() types.UUID { return a.meta.UUID }
func (a *TestArtifact) Meta() Metadata   { return a.meta }

func (a *TestArtifact) SetMeta(m Metadata) error {
	return setMeta(&a.meta, a.meta.UUID, m)
}

func (a *TestArtifact) SaveBlob(dir string) error {
	data, err := encodeBlob(testBlob{Code: a.Code, Defaults: a.Defaults})
	if err != nil {
		return err
	}
	return writeBlobFile(dir, testBlobFile, data)
}

func LoadTest(dir string, id types.UUID, meta Metadata) (Artifact, error) {
	tm, err := checkMeta[*TestMeta](id, meta)
	if err != nil {
		return nil, err
	}

	data, found, err := readBlobFile(dir, testBlobFile)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}

	var blob testBlob
	if err := decodeBlob(data, &blob); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", testBlobFile, err)
	}

	return &TestArtifact{
		meta:     tm.Clone().(*TestMeta),
		Code:     blob.Code,
		Defaults: blob.Defaults,
	}, nil
}
