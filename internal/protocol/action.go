package protocol

import (
	"github.com/Pedro-5D/planchis/internal/json"
	"github.com/Pedro-5D/planchis/pkg/util/merr"
)

// ActionKind 为 game_action.action 内部的动作类型。
type ActionKind string

const (
	ActionRollDice      ActionKind = "roll_dice"
	ActionMovePiece     ActionKind = "move_piece"
	ActionPlaceNewPiece ActionKind = "place_new_piece"
	ActionNextTurn      ActionKind = "next_turn"
	ActionGameOver      ActionKind = "game_over"
)

// Action 为封闭的动作联合类型，每种动作对应一个实现。
// 动作在边界处解码一次，内部不再做 type 分支判断之外的解析。
type Action interface {
	Kind() ActionKind
}

// PlayerCounters 为动作携带的每座位棋子计数更新。
type PlayerCounters struct {
	PiecesInHouse int `json:"piecesInHouse"`
	PiecesInCross int `json:"piecesInCross"`
}

// RollDice 对应 roll_dice 动作。
// 骰子结果与可行步列表由客户端计算，服务器原样存储并广播。
type RollDice struct {
	DiceResult    json.RawMessage `json:"diceResult"`
	PossibleMoves json.RawMessage `json:"possibleMoves"`
}

func (RollDice) Kind() ActionKind { return ActionRollDice }

// MovePiece 对应 move_piece 动作。
// InCross 为 nil 时表示该动作未声明 inCross 字段，保留棋子原状态。
type MovePiece struct {
	PieceID        string                    `json:"pieceId"`
	TargetRow      int                       `json:"targetRow"`
	TargetCol      int                       `json:"targetCol"`
	InCross        *bool                     `json:"inCross"`
	CapturedPieces []string                  `json:"capturedPieces"`
	UpdatedPlayers map[string]PlayerCounters `json:"updatedPlayers"`
}

func (MovePiece) Kind() ActionKind { return ActionMovePiece }

// PlaceNewPiece 对应 place_new_piece 动作。
type PlaceNewPiece struct {
	PieceID        string                    `json:"pieceId"`
	Row            int                       `json:"row"`
	Col            int                       `json:"col"`
	InCross        bool                      `json:"inCross"`
	CapturedPieces []string                  `json:"capturedPieces"`
	UpdatedPlayers map[string]PlayerCounters `json:"updatedPlayers"`
}

func (PlaceNewPiece) Kind() ActionKind { return ActionPlaceNewPiece }

// NextTurn 对应 next_turn 动作，不携带字段。
type NextTurn struct{}

func (NextTurn) Kind() ActionKind { return ActionNextTurn }

// GameOver 对应 game_over 动作。
// Winner 由客户端给出，服务器不解释其内容。
type GameOver struct {
	Winner json.RawMessage `json:"winner"`
}

func (GameOver) Kind() ActionKind { return ActionGameOver }

// actionEnvelope 只携带动作类型，用于路由到具体动作结构体。
type actionEnvelope struct {
	Type ActionKind `json:"type"`
}

// DecodeAction 将 game_action.action 的原始字节解码为封闭联合中的一个动作。
// 未知动作类型返回 ErrActionUnknownKind，非法 JSON 返回 ErrMessageMalformed。
func DecodeAction(data json.RawMessage) (Action, error) {
	var env actionEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, merr.WrapErrMessageMalformed(err, "failed to decode action envelope")
	}

	var (
		action Action
		err    error
	)
	switch env.Type {
	case ActionRollDice:
		var a RollDice
		err = json.Unmarshal(data, &a)
		action = a
	case ActionMovePiece:
		var a MovePiece
		err = json.Unmarshal(data, &a)
		action = a
	case ActionPlaceNewPiece:
		var a PlaceNewPiece
		err = json.Unmarshal(data, &a)
		action = a
	case ActionNextTurn:
		action = NextTurn{}
	case ActionGameOver:
		var a GameOver
		err = json.Unmarshal(data, &a)
		action = a
	default:
		return nil, merr.WrapErrActionUnknownKind(string(env.Type))
	}
	if err != nil {
		return nil, merr.WrapErrMessageMalformed(err, "failed to decode action payload")
	}
	return action, nil
}
