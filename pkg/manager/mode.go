package manager

import "artifactvault/pkg/remote"

// Mode 在调用时选择本地模式或联网模式
// 两个变体是封闭的 (sealed)，代码路径由类型 switch 穷举
type Mode interface {
	isMode()
}

type localOnlyMode struct{}

type networkedMode struct {
	client remote.Client
}

func (localOnlyMode) isMode() {}
func (networkedMode) isMode() {}

// LocalOnly 只读写本地缓存，永不发起网络调用
func LocalOnly() Mode { return localOnlyMode{} }

// Networked 通过 client 与远端同步
func Networked(client remote.Client) Mode {
	if client == nil {
		panic("manager: Networked requires a non-nil client")
	}
	return networkedMode{client: client}
}
