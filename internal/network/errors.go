package network

import "errors"

// Stage 表示网络收发链路中的处理阶段。
//
// 主要用于在日志中标记错误发生的位置，便于监控与排查。
type Stage string

const (
	StageHandshake Stage = "handshake"
	StageRecv      Stage = "recv"     // 读取底层 WebSocket 帧
	StageDispatch  Stage = "dispatch" // 消息 -> 业务处理
	StageSend      Stage = "send"     // 底层发送
)

// 统一的错误码常量。
//
// 注意：这些是用于日志/监控的稳定字符串，真正的 error 对象在下面通过 errors.New 构造。
const (
	ErrCodeHandshakeFailed = "network:handshake_failed"
	ErrCodeRecvFailed      = "network:recv_failed"
	ErrCodeSendFailed      = "network:send_failed"
	ErrCodeSendQueueFull   = "network:send_queue_full"
	ErrCodeSessionClosed   = "network:session_closed"
)

var (
	// ErrHandshakeFailed 表示握手阶段失败（例如 WebSocket 升级失败）。
	ErrHandshakeFailed = errors.New(ErrCodeHandshakeFailed)

	// ErrRecvFailed 表示在读取底层连接数据时发生错误。
	ErrRecvFailed = errors.New(ErrCodeRecvFailed)

	// ErrSendFailed 表示在发送数据到对端时发生错误。
	ErrSendFailed = errors.New(ErrCodeSendFailed)

	// ErrSendQueueFull 表示该连接的发送队列已满，消息被拒绝。
	ErrSendQueueFull = errors.New(ErrCodeSendQueueFull)

	// ErrSessionClosed 表示对已关闭的连接执行发送操作。
	ErrSessionClosed = errors.New(ErrCodeSessionClosed)
)
