// Package ignore decides which files of a cache directory are never published
// as blobs.
package ignore

import (
	"os"
	"path/filepath"

	gitignore "github.com/sabhiram/go-gitignore"
)

// FileName 是用户自定义规则文件，放在 Artifact 的缓存目录中
const FileName = ".avignore"

// Matcher 封装了忽略逻辑
type Matcher struct {
	ignorer *gitignore.GitIgnore
}

// NewMatcher 初始化忽略匹配器
// dir: Artifact 的缓存目录 (用于查找 .avignore 文件)
func NewMatcher(dir string) (*Matcher, error) {
	// 1. 系统级默认规则，排在用户规则之后，用户无法用 ! 取消
	defaultRules := []string{
		// 元数据只走 PushMetadata
		"meta.yaml",

		// 点文件: 锁、写入中的临时文件、拉取暂存目录、.avignore 本身
		".*",

		// --- 常见垃圾文件 ---
		"Thumbs.db",
	}

	var ignorer *gitignore.GitIgnore
	var err error

	// 2. 检查用户是否有 .avignore 文件
	ignoreFilePath := filepath.Join(dir, FileName)

	if _, errStat := os.Stat(ignoreFilePath); errStat == nil {
		ignorer, err = gitignore.CompileIgnoreFileAndLines(ignoreFilePath, defaultRules...)
	} else {
		ignorer = gitignore.CompileIgnoreLines(defaultRules...)
	}

	if err != nil {
		return nil, err
	}

	return &Matcher{ignorer: ignorer}, nil
}

// Matches 检查给定的路径是否匹配忽略规则
// path: 相对于缓存目录的 slash 路径 (例如 "model.cbor")
// 返回: true 表示应该忽略
func (m *Matcher) Matches(path string) bool {
	if m.ignorer == nil {
		return false
	}
	return m.ignorer.MatchesPath(path)
}
