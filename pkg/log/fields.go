package log

import (
	"go.uber.org/zap"
)

const (
	FieldNameModule    = "module"
	FieldNameComponent = "component"
	FieldNameGameID    = "gameID"
	FieldNamePlayerID  = "playerID"
	FieldNameConnID    = "connID"
)

// FieldModule 返回一个包含模块名的 zap 字段。
func FieldModule(module string) zap.Field {
	return zap.String(FieldNameModule, module)
}

// FieldComponent 返回一个包含组件名的 zap 字段。
func FieldComponent(component string) zap.Field {
	return zap.String(FieldNameComponent, component)
}

// FieldGameID 返回一个包含对局 ID 的 zap 字段。
func FieldGameID(gameID string) zap.Field {
	return zap.String(FieldNameGameID, gameID)
}

// FieldPlayerID 返回一个包含座位 ID 的 zap 字段。
func FieldPlayerID(playerID string) zap.Field {
	return zap.String(FieldNamePlayerID, playerID)
}

// FieldConnID 返回一个包含连接 ID 的 zap 字段。
func FieldConnID(connID uint64) zap.Field {
	return zap.Uint64(FieldNameConnID, connID)
}
