// Package eino 通过 eino 全局回调统计 MCP 工具调用
package eino

import (
	"sync"

	"github.com/cloudwego/eino/callbacks"
	cbtemplate "github.com/cloudwego/eino/utils/callbacks"
)

var registerOnce sync.Once

// Handler 只处理工具组件的回调处理器
func Handler() callbacks.Handler {
	return cbtemplate.NewHandlerHelper().
		Tool(newToolCallbackHandler()).
		Handler()
}

// Init 把 Handler 加入全局回调，重复调用只注册一次
func Init() {
	registerOnce.Do(func() {
		callbacks.AppendGlobalHandlers(Handler())
	})
}
