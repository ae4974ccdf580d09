package localstore

import (
	"os"
	"path/filepath"

	"artifactvault/pkg/artifact"
)

// Unlock 释放 Lock 获取的锁
type Unlock func() error

// Lock 获取缓存目录的独占建议锁 (advisory lock)
// 锁文件是目录的同级文件 (.<uuid>.lock)，不会混进 Blob 目录
// 只协调同一主机上的进程；跨主机的单写者约束仍由调用方保证
func (s *Store) Lock(dir string) (Unlock, error) {
	parent := filepath.Dir(dir)
	if err := s.EnsureDir(parent); err != nil {
		return nil, err
	}

	path := filepath.Join(parent, "."+filepath.Base(dir)+".lock")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, &artifact.IOError{Op: "open", Path: path, Err: err}
	}

	if err := lockFile(f); err != nil {
		f.Close()
		return nil, &artifact.IOError{Op: "lock", Path: path, Err: err}
	}

	return func() error {
		unlockErr := unlockFile(f)
		closeErr := f.Close()
		if unlockErr != nil {
			return unlockErr
		}
		return closeErr
	}, nil
}
