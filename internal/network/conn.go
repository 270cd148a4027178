package network

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	uatomic "go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/Pedro-5D/planchis/pkg/log"
)

// sessionIDCounter 为进程内的连接 ID 分配器。
var sessionIDCounter = uatomic.NewUint64(0)

func nextSessionID() uint64 {
	return sessionIDCounter.Inc()
}

// wsSession 是基于 gorilla/websocket 的 Session 默认实现。
//
// 收发模型：
//   - 单读协程：顺序读取消息并回调 Handler.OnMessage；
//   - 单写协程：从发送队列取数据写出，并周期性发送 Ping 帧维持心跳；
//   - 同一连接上的消息发送顺序与 Send 调用顺序一致。
type wsSession struct {
	id   uint64
	conn *websocket.Conn

	ctx    context.Context
	cancel context.CancelFunc

	cfg Config
	h   Handler

	remoteAddr string

	sendChan chan []byte

	closeOnce sync.Once
}

var _ Session = (*wsSession)(nil)

func newWSSession(parent context.Context, conn *websocket.Conn, cfg Config, h Handler) *wsSession {
	ctx, cancel := context.WithCancel(parent)
	return &wsSession{
		id:         nextSessionID(),
		conn:       conn,
		ctx:        ctx,
		cancel:     cancel,
		cfg:        cfg,
		h:          h,
		remoteAddr: conn.RemoteAddr().String(),
		sendChan:   make(chan []byte, cfg.SendQueueSize),
	}
}

// Session 接口实现。

func (s *wsSession) ID() uint64         { return s.id }
func (s *wsSession) RemoteAddr() string { return s.remoteAddr }
func (s *wsSession) Close() error       { return s.close(nil) }

func (s *wsSession) Send(data []byte) error {
	select {
	case <-s.ctx.Done():
		return ErrSessionClosed
	default:
	}

	select {
	case s.sendChan <- data:
		return nil
	case <-s.ctx.Done():
		return ErrSessionClosed
	default:
		// 队列已满说明对端长时间不消费，拒绝而不是阻塞业务协程。
		return ErrSendQueueFull
	}
}

func (s *wsSession) close(cause error) error {
	var err error
	s.closeOnce.Do(func() {
		s.cancel()
		err = s.conn.Close()
		s.h.OnClosed(s, cause)
	})
	return err
}

// run 驱动该连接的收发协程，阻塞直至连接关闭。
// 由接入层在独立协程中调用。
func (s *wsSession) run() {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.writeLoop()
	}()

	s.readLoop()
	wg.Wait()
}

// readLoop 顺序读取消息并回调 Handler.OnMessage。
// 通过 Pong 帧刷新读超时实现心跳检测。
func (s *wsSession) readLoop() {
	pongWait := s.cfg.PingInterval + s.cfg.PongTimeout

	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		msgType, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				s.close(nil)
			} else {
				s.close(err)
			}
			return
		}
		if msgType != websocket.TextMessage && msgType != websocket.BinaryMessage {
			continue
		}

		s.h.OnMessage(s, data)
	}
}

// writeLoop 从发送队列取数据写出，并周期性发送 Ping 帧。
func (s *wsSession) writeLoop() {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return

		case data := <-s.sendChan:
			if err := s.writeRaw(websocket.TextMessage, data); err != nil {
				log.RatedWarn(1.0, "failed to write message",
					zap.Uint64("connID", s.id),
					zap.String("remoteAddr", s.remoteAddr),
					zap.String("stage", string(StageSend)),
					zap.Error(err))
				s.close(err)
				return
			}

		case <-ticker.C:
			if err := s.writeRaw(websocket.PingMessage, nil); err != nil {
				s.close(err)
				return
			}
		}
	}
}

func (s *wsSession) writeRaw(msgType int, data []byte) error {
	if s.cfg.WriteTimeout > 0 {
		if err := s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout)); err != nil {
			return err
		}
	}
	return s.conn.WriteMessage(msgType, data)
}
