package game

import (
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/Pedro-5D/planchis/internal/json"
	"github.com/Pedro-5D/planchis/internal/network"
	"github.com/Pedro-5D/planchis/internal/protocol"
	"github.com/Pedro-5D/planchis/pkg/log"
	"github.com/Pedro-5D/planchis/pkg/metrics"
	"github.com/Pedro-5D/planchis/pkg/util/merr"
)

// 入站消息缺省字段值，与现有客户端保持一致。
const (
	defaultHostName   = "Anfitrión"
	defaultPlayerName = "Jugador"
	defaultGameMode   = 2
)

// 错误应答文案，与现有客户端的展示逻辑保持一致。
const (
	errMsgJoinFailed    = "No se pudo unir al juego"
	errMsgStartFailed   = "No se pudo iniciar el juego"
	errMsgInvalidAction = "Acción no válida"
	errMsgMalformed     = "Formato de mensaje inválido"
	errMsgUnknownType   = "Tipo de mensaje desconocido"
	errMsgInternal      = "Error interno del servidor"
)

// Dispatcher 是传输层与 Registry 之间的边界：
// 在入站边界把消息解码一次为强类型结构，路由到对应的生命周期操作，
// 并把结果编码为应答。
//
// 单条消息处理中的任何 panic 都被就地捕获：
// 记录日志、向来源连接回复内部错误，但绝不关闭该连接，
// 也绝不影响其他连接或对局。
type Dispatcher struct {
	reg *Registry

	// now 可在测试中注入假时钟。
	now func() time.Time
}

func NewDispatcher(reg *Registry) *Dispatcher {
	return &Dispatcher{
		reg: reg,
		now: reg.now,
	}
}

var _ network.Handler = (*Dispatcher)(nil)

// OnConnected 实现 network.Handler。
func (d *Dispatcher) OnConnected(sess network.Session) {
	log.Debug("client connected",
		zap.Uint64("connID", sess.ID()),
		zap.String("remoteAddr", sess.RemoteAddr()))
}

// OnClosed 实现 network.Handler。连接关闭驱动断线生命周期，不是错误路径。
func (d *Dispatcher) OnClosed(sess network.Session, err error) {
	if err != nil {
		log.Debug("client connection closed with error",
			zap.Uint64("connID", sess.ID()),
			zap.Error(err))
	}
	d.reg.Disconnect(sess)
}

// OnMessage 实现 network.Handler。同一连接上的消息由传输层保证串行到达。
func (d *Dispatcher) OnMessage(sess network.Session, data []byte) {
	defer func() {
		if v := recover(); v != nil {
			err := merr.WrapErrServiceInternal("panic in message handler: %v", v)
			log.Error("message handler panicked",
				zap.Uint64("connID", sess.ID()),
				zap.Any("panic", v),
				zap.Stack("stack"),
				zap.Error(err))
			d.replyError(sess, errMsgInternal)
		}
	}()

	typ, err := protocol.DecodeEnvelope(data)
	if err != nil {
		log.Warn("malformed message",
			zap.Uint64("connID", sess.ID()),
			zap.Error(err))
		d.replyError(sess, errMsgMalformed)
		return
	}

	metrics.MessageTotal.WithLabelValues(string(typ)).Inc()

	switch typ {
	case protocol.MessageCreateGame:
		d.handleCreateGame(sess, data)
	case protocol.MessageJoinGame:
		d.handleJoinGame(sess, data)
	case protocol.MessageStartGame:
		d.handleStartGame(sess, data)
	case protocol.MessageGameAction:
		d.handleGameAction(sess, data)
	case protocol.MessageGetAvailableGames:
		d.handleGetAvailableGames(sess)
	case protocol.MessagePing:
		d.handlePing(sess, data)
	default:
		log.Warn("unknown message type",
			zap.Uint64("connID", sess.ID()),
			zap.String("type", string(typ)),
			zap.Error(merr.WrapErrMessageUnknownType(string(typ))))
		d.replyError(sess, errMsgUnknownType)
	}
}

func (d *Dispatcher) handleCreateGame(sess network.Session, data []byte) {
	var msg protocol.CreateGame
	if err := json.Unmarshal(data, &msg); err != nil {
		d.replyError(sess, errMsgMalformed)
		return
	}

	if msg.HostName == "" {
		msg.HostName = defaultHostName
	}
	if msg.GameName == "" {
		msg.GameName = fmt.Sprintf("Partida de %s", msg.HostName)
	}
	if msg.GameMode == 0 {
		msg.GameMode = defaultGameMode
	}

	gameID := d.reg.Create(sess, msg.HostName, msg.GameName, msg.GameMode)
	// 创建者固定占据 0 号座位。
	d.reply(sess, &protocol.GameCreated{
		Type:     protocol.MessageGameCreated,
		GameID:   gameID,
		PlayerID: "0",
	})
}

func (d *Dispatcher) handleJoinGame(sess network.Session, data []byte) {
	var msg protocol.JoinGame
	if err := json.Unmarshal(data, &msg); err != nil {
		d.replyError(sess, errMsgMalformed)
		return
	}

	if msg.PlayerName == "" {
		msg.PlayerName = defaultPlayerName
	}

	playerID, err := d.reg.JoinOrReconnect(sess, msg.GameID, msg.PlayerName)
	if err != nil {
		log.Warn("join game rejected",
			zap.Uint64("connID", sess.ID()),
			zap.String("gameId", msg.GameID),
			zap.Error(err))
		d.replyError(sess, errMsgJoinFailed)
		return
	}

	d.reply(sess, &protocol.GameJoined{
		Type:     protocol.MessageGameJoined,
		GameID:   msg.GameID,
		PlayerID: playerID,
	})
}

func (d *Dispatcher) handleStartGame(sess network.Session, data []byte) {
	var msg protocol.StartGame
	if err := json.Unmarshal(data, &msg); err != nil {
		d.replyError(sess, errMsgMalformed)
		return
	}

	if err := d.reg.Start(sess, msg.GameID); err != nil {
		log.Warn("start game rejected",
			zap.Uint64("connID", sess.ID()),
			zap.String("gameId", msg.GameID),
			zap.Error(err))
		d.replyError(sess, errMsgStartFailed)
	}
}

func (d *Dispatcher) handleGameAction(sess network.Session, data []byte) {
	var msg protocol.GameAction
	if err := json.Unmarshal(data, &msg); err != nil {
		d.replyError(sess, errMsgMalformed)
		return
	}

	seatIdx, err := strconv.Atoi(msg.PlayerID)
	if err != nil {
		log.Warn("game action with invalid seat",
			zap.Uint64("connID", sess.ID()),
			zap.String("playerId", msg.PlayerID),
			zap.Error(merr.WrapErrMessageMalformed(err)))
		d.replyError(sess, errMsgMalformed)
		return
	}

	action, err := protocol.DecodeAction(msg.Action)
	if err != nil {
		log.Warn("game action rejected at decode",
			zap.Uint64("connID", sess.ID()),
			zap.String("gameId", msg.GameID),
			zap.Error(err))
		if merr.Code(err) == merr.Code(merr.ErrMessageMalformed) {
			d.replyError(sess, errMsgMalformed)
		} else {
			d.replyError(sess, errMsgInvalidAction)
		}
		return
	}

	if err := d.reg.Act(msg.GameID, seatIdx, action); err != nil {
		log.Warn("game action rejected",
			zap.Uint64("connID", sess.ID()),
			zap.String("gameId", msg.GameID),
			zap.String("playerId", msg.PlayerID),
			zap.Error(err))
		d.replyError(sess, errMsgInvalidAction)
	}
}

func (d *Dispatcher) handleGetAvailableGames(sess network.Session) {
	games := d.reg.AvailableGames()
	if games == nil {
		games = make([]protocol.LobbyEntry, 0)
	}
	d.reply(sess, &protocol.AvailableGames{
		Type:  protocol.MessageAvailableGames,
		Games: games,
	})
}

func (d *Dispatcher) handlePing(sess network.Session, data []byte) {
	var msg protocol.Ping
	if err := json.Unmarshal(data, &msg); err != nil {
		d.replyError(sess, errMsgMalformed)
		return
	}

	d.reply(sess, &protocol.Pong{
		Type:       protocol.MessagePong,
		ClientTime: msg.Timestamp,
		ServerTime: d.now().UnixMilli(),
	})
}

func (d *Dispatcher) reply(sess network.Session, msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Error("failed to marshal reply",
			zap.Uint64("connID", sess.ID()),
			zap.Error(err))
		return
	}
	if err := sess.Send(data); err != nil {
		log.RatedWarn(1.0, "failed to send reply",
			zap.Uint64("connID", sess.ID()),
			zap.Error(err))
	}
}

func (d *Dispatcher) replyError(sess network.Session, message string) {
	d.reply(sess, protocol.NewErrorReply(message))
}
