package json

import (
	"encoding/json"

	"github.com/bytedance/sonic"
)

// RawMessage 复用标准库的定义，便于与 encoding/json 互操作。
type RawMessage = json.RawMessage

// api 为当前进程统一使用的 sonic 配置。
// 使用 ConfigStd 保证与 encoding/json 的行为（键排序、转义）一致，
// 客户端对字段顺序没有要求，但测试断言依赖稳定输出。
var api = sonic.ConfigStd

// Marshal 将 v 序列化为 JSON 字节。
func Marshal(v any) ([]byte, error) {
	return api.Marshal(v)
}

// Unmarshal 将 JSON 字节反序列化到 v。
func Unmarshal(data []byte, v any) error {
	return api.Unmarshal(data, v)
}
