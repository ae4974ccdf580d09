//go:build !unix

package localstore

import "os"

// 非 unix 平台不提供进程间锁
func lockFile(*os.File) error   { return nil }
func unlockFile(*os.File) error { return nil }
