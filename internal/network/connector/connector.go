// Package connector 提供 WebSocket 的客户端拨号能力。
//
// 服务器自身不使用该包，主要供集成测试与运维工具使用。
package connector

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
)

// Config 描述客户端连接的基础配置。
type Config struct {
	SendQueueSize int
	RecvQueueSize int

	WriteTimeout time.Duration

	// HandshakeTimeout 为单次拨号的握手超时。
	HandshakeTimeout time.Duration

	// MaxRetryElapsed 为拨号重试的总时长上限，超出后放弃。
	// 为 0 时使用默认值 30s。
	MaxRetryElapsed time.Duration
}

func defaultConfig() Config {
	return Config{
		SendQueueSize:    64,
		RecvQueueSize:    64,
		WriteTimeout:     10 * time.Second,
		HandshakeTimeout: 5 * time.Second,
		MaxRetryElapsed:  30 * time.Second,
	}
}

// Conn 是客户端侧的一条 WebSocket 连接。
type Conn struct {
	ws *websocket.Conn

	ctx    context.Context
	cancel context.CancelFunc

	cfg Config

	sendChan chan []byte
	recvChan chan []byte

	closeOnce sync.Once
}

// Dial 拨号连接到 urlStr，失败时按指数退避重试，直至成功或超出重试上限。
func Dial(ctx context.Context, urlStr string, cfg Config, header http.Header) (*Conn, error) {
	def := defaultConfig()
	if cfg.SendQueueSize <= 0 {
		cfg.SendQueueSize = def.SendQueueSize
	}
	if cfg.RecvQueueSize <= 0 {
		cfg.RecvQueueSize = def.RecvQueueSize
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = def.HandshakeTimeout
	}
	if cfg.MaxRetryElapsed <= 0 {
		cfg.MaxRetryElapsed = def.MaxRetryElapsed
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: cfg.HandshakeTimeout,
	}

	var ws *websocket.Conn
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 100 * time.Millisecond
	bo.MaxElapsedTime = cfg.MaxRetryElapsed

	err := backoff.Retry(func() error {
		var derr error
		ws, _, derr = dialer.DialContext(ctx, urlStr, header)
		return derr
	}, backoff.WithContext(bo, ctx))
	if err != nil {
		return nil, err
	}

	connCtx, cancel := context.WithCancel(ctx)
	c := &Conn{
		ws:       ws,
		ctx:      connCtx,
		cancel:   cancel,
		cfg:      cfg,
		sendChan: make(chan []byte, cfg.SendQueueSize),
		recvChan: make(chan []byte, cfg.RecvQueueSize),
	}

	go c.recvLoop()
	go c.sendLoop()

	return c, nil
}

// Send 将一条已序列化的消息写入发送队列。
func (c *Conn) Send(data []byte) error {
	select {
	case <-c.ctx.Done():
		return c.ctx.Err()
	case c.sendChan <- data:
		return nil
	}
}

// Recv 返回接收队列。连接关闭后该通道会被关闭。
func (c *Conn) Recv() <-chan []byte {
	return c.recvChan
}

// Close 主动关闭连接，幂等。
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		err = c.ws.Close()
	})
	return err
}

// recvLoop 持续读取 WebSocket 消息并投递到接收队列。
// 接收队列由读协程独占写入，退出时在此关闭。
func (c *Conn) recvLoop() {
	defer close(c.recvChan)
	defer c.Close()

	for {
		msgType, data, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.TextMessage && msgType != websocket.BinaryMessage {
			continue
		}

		select {
		case <-c.ctx.Done():
			return
		case c.recvChan <- data:
		}
	}
}

// sendLoop 从发送队列取数据并写入 WebSocket。
func (c *Conn) sendLoop() {
	for {
		select {
		case <-c.ctx.Done():
			return
		case data := <-c.sendChan:
			if c.cfg.WriteTimeout > 0 {
				_ = c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				c.Close()
				return
			}
		}
	}
}
