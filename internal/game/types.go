// Package game 实现对局会话的生命周期管理。
//
// 服务器不校验走子合法性：骰子、合法步、吃子均由客户端本地计算，
// 以动作事实的形式上报。服务器只负责会话生命周期：
// 创建/加入、座位分配与回收、回合顺序校验、断线重连宽限期、
// 状态广播以及废弃会话的周期性回收。
package game

import (
	"fmt"
	"time"

	"github.com/Pedro-5D/planchis/internal/json"
	"github.com/Pedro-5D/planchis/internal/network"
)

// Conn 为业务层看到的客户端连接。
type Conn = network.Session

// Game 为一局对局的完整状态。
// 导出字段与线上协议的 game_update.game 快照一一对应，
// 未导出字段为仅服务器内部使用的簿记数据。
type Game struct {
	GameID           string               `json:"gameId"`
	GameName         string               `json:"gameName"`
	GameMode         int                  `json:"gameMode"`
	Host             string               `json:"host"`
	Players          map[string]*SeatInfo `json:"players"`
	GameState        *GameState           `json:"gameState"`
	ConnectedPlayers int                  `json:"connectedPlayers"`
	RequiredPlayers  int                  `json:"requiredPlayers"`

	// 生命周期簿记。时间字段零值表示未设置。
	createdAt          time.Time
	lastActivity       time.Time
	disconnectDeadline time.Time
	emptySince         time.Time

	// 座位号 -> 当前附着的连接。
	conns map[string]Conn
}

// SeatInfo 为一个座位上的玩家信息。
type SeatInfo struct {
	Name      string `json:"name"`
	Connected bool   `json:"connected"`
	IsHost    bool   `json:"isHost"`
}

// GameState 为客户端驱动的棋局状态。
// DiceResult/PossibleMoves/Winner 为客户端上报的不透明负载，
// 服务器只存储与转发，不解释其内容。
type GameState struct {
	CurrentPlayer       int             `json:"currentPlayer"`
	DiceResult          json.RawMessage `json:"diceResult"`
	PossibleMoves       json.RawMessage `json:"possibleMoves,omitempty"`
	Pieces              []*Piece        `json:"pieces"`
	GameOver            bool            `json:"gameOver"`
	Winner              json.RawMessage `json:"winner,omitempty"`
	ActivePlayerIndices []int           `json:"activePlayerIndices"`
	HumanPlayers        []int           `json:"humanPlayers"`
	Started             bool            `json:"started"`
	Players             []*PlayerBoard  `json:"players"`
}

// Piece 为棋盘上的一枚棋子。
type Piece struct {
	ID      string `json:"id"`
	Player  int    `json:"player"`
	Row     int    `json:"row"`
	Col     int    `json:"col"`
	InCross bool   `json:"inCross"`
}

// PlayerBoard 为每个座位的棋盘侧信息（含 AI 占位座位）。
type PlayerBoard struct {
	Name          string `json:"name"`
	Color         string `json:"color"`
	ColorName     string `json:"colorName"`
	PiecesInHouse int    `json:"piecesInHouse"`
	PiecesInCross int    `json:"piecesInCross"`
	AI            bool   `json:"ai"`
	CrossZone     string `json:"crossZone"`
	BgColor       string `json:"bgColor"`
}

// 座位拓扑：2 人局使用对角座位 {0,2}，4 人局使用全部座位。
var seatTopologies = map[int][]int{
	2: {0, 2},
	4: {0, 1, 2, 3},
}

// seatTopology 返回给定模式下的固定座位拓扑。
// 非法模式按 4 人局处理。
func seatTopology(mode int) []int {
	if topo, ok := seatTopologies[mode]; ok {
		return topo
	}
	return seatTopologies[4]
}

// seatDefault 为每个座位的固定默认配置，索引 0..3。
type seatDefault struct {
	name      string
	color     string
	colorName string
	colorHex  string
	crossZone string
}

var seatDefaults = [4]seatDefault{
	{name: "Jugador 1", color: "player1", colorName: "Verde", colorHex: "#00b050", crossZone: "green"},
	{name: "Jugador 2", color: "player2", colorName: "Azul", colorHex: "#1aa3ff", crossZone: "blue"},
	{name: "Jugador 3", color: "player3", colorName: "Rosa", colorHex: "#ff1493", crossZone: "pink"},
	{name: "Jugador 4", color: "player4", colorName: "Amarillo", colorHex: "#ffde00", crossZone: "yellow"},
}

// initialPiecesInHouse 为每个座位开局时的待出子数量。
const initialPiecesInHouse = 6

// newPlayerBoard 构造索引 idx 座位的棋盘侧信息。
// humanName 非空时覆盖默认名字，ai 标记该座位是否为占位 AI。
func newPlayerBoard(idx int, humanName string, ai bool) *PlayerBoard {
	def := seatDefaults[idx]
	name := def.name
	if humanName != "" {
		name = humanName
	}
	return &PlayerBoard{
		Name:          name,
		Color:         def.color,
		ColorName:     def.colorName,
		PiecesInHouse: initialPiecesInHouse,
		PiecesInCross: 0,
		AI:            ai,
		CrossZone:     def.crossZone,
		BgColor:       fmt.Sprintf("rgba(%s, 0.2)", hexToRGB(def.colorHex)),
	}
}

// hexToRGB 将 "#rrggbb" 转为 "r, g, b" 形式的十进制分量。
func hexToRGB(hexColor string) string {
	var r, g, b int
	fmt.Sscanf(hexColor, "#%02x%02x%02x", &r, &g, &b)
	return fmt.Sprintf("%d, %d, %d", r, g, b)
}
