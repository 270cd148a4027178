// Package protocol 定义客户端与服务器之间的 JSON 线上协议。
//
// 协议约定：
//   - 所有消息均为单个 JSON 对象，通过 type 字段区分消息类型；
//   - 字段名与现有客户端保持完全一致，不做任何重命名；
//   - 服务器只在边界处解码一次，内部流转的是强类型结构体。
package protocol

import (
	"github.com/Pedro-5D/planchis/internal/json"
	"github.com/Pedro-5D/planchis/pkg/util/merr"
)

// MessageType 为入站/出站消息的类型标识。
type MessageType string

const (
	// 入站消息类型。
	MessageCreateGame        MessageType = "create_game"
	MessageJoinGame          MessageType = "join_game"
	MessageStartGame         MessageType = "start_game"
	MessageGameAction        MessageType = "game_action"
	MessageGetAvailableGames MessageType = "get_available_games"
	MessagePing              MessageType = "ping"

	// 出站消息类型。
	MessageGameCreated    MessageType = "game_created"
	MessageGameJoined     MessageType = "game_joined"
	MessageAvailableGames MessageType = "available_games"
	MessageGameUpdate     MessageType = "game_update"
	MessagePong           MessageType = "pong"
	MessageError          MessageType = "error"
)

// Envelope 只携带消息类型，用于第一遍解码做路由。
type Envelope struct {
	Type MessageType `json:"type"`
}

// DecodeEnvelope 解析入站消息的 type 字段。
func DecodeEnvelope(data []byte) (MessageType, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", merr.WrapErrMessageMalformed(err)
	}
	return env.Type, nil
}

// CreateGame 对应 create_game 消息。
type CreateGame struct {
	Type     MessageType `json:"type"`
	HostName string      `json:"hostName"`
	GameName string      `json:"gameName"`
	GameMode int         `json:"gameMode"`
}

// JoinGame 对应 join_game 消息。
type JoinGame struct {
	Type       MessageType `json:"type"`
	GameID     string      `json:"gameId"`
	PlayerName string      `json:"playerName"`
}

// StartGame 对应 start_game 消息。
type StartGame struct {
	Type   MessageType `json:"type"`
	GameID string      `json:"gameId"`
}

// GameAction 对应 game_action 消息。
// Action 保持原始字节，由 DecodeAction 做第二遍解码。
type GameAction struct {
	Type     MessageType     `json:"type"`
	GameID   string          `json:"gameId"`
	PlayerID string          `json:"playerId"`
	Action   json.RawMessage `json:"action"`
}

// Ping 对应 ping 消息。
// Timestamp 为客户端本地时间，原样回传。
type Ping struct {
	Type      MessageType     `json:"type"`
	Timestamp json.RawMessage `json:"timestamp"`
}

// GameCreated 为 create_game 的成功应答。
type GameCreated struct {
	Type     MessageType `json:"type"`
	GameID   string      `json:"gameId"`
	PlayerID string      `json:"playerId"`
}

// GameJoined 为 join_game 的成功应答。
type GameJoined struct {
	Type     MessageType `json:"type"`
	GameID   string      `json:"gameId"`
	PlayerID string      `json:"playerId"`
}

// LobbyEntry 为大厅中一条可加入的对局记录。
type LobbyEntry struct {
	GameID           string `json:"gameId"`
	GameName         string `json:"gameName"`
	GameMode         int    `json:"gameMode"`
	Host             string `json:"host"`
	ConnectedPlayers int    `json:"connectedPlayers"`
	RequiredPlayers  int    `json:"requiredPlayers"`
}

// AvailableGames 为 get_available_games 的应答。
type AvailableGames struct {
	Type  MessageType  `json:"type"`
	Games []LobbyEntry `json:"games"`
}

// Pong 为 ping 的应答。
type Pong struct {
	Type       MessageType     `json:"type"`
	ClientTime json.RawMessage `json:"clientTime"`
	ServerTime int64           `json:"serverTime"`
}

// ErrorReply 为所有失败路径的统一应答。
type ErrorReply struct {
	Type    MessageType `json:"type"`
	Message string      `json:"message"`
}

// NewErrorReply 构造一条 error 应答。
func NewErrorReply(message string) *ErrorReply {
	return &ErrorReply{Type: MessageError, Message: message}
}
