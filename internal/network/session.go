package network

// Session 抽象了一条已接入的客户端连接。
//
// 约定：
//   - 每个 Session 对应一条底层 WebSocket 连接；
//   - Session ID 使用 64 位无符号整型，进程内全局唯一；
//   - 传输层只关心连接本身，不关心"玩家/座位"等具体业务概念。
type Session interface {
	// ID 返回该连接在进程内的全局唯一标识。
	//
	// 说明：
	//   - 由接入层在连接建立时分配（自增 uint64）；
	//   - 业务层通过该 ID 建立 "连接 <-> 座位" 的映射关系。
	ID() uint64

	// RemoteAddr 返回远端地址（客户端地址），主要用于日志记录。
	RemoteAddr() string

	// Send 将一条已序列化的消息写入该连接的发送队列。
	//
	// 行为：
	//   - 入参为完整的 JSON 文本字节，传输层不做二次编码；
	//   - 同一连接上消息的发送顺序与调用顺序一致；
	//   - 连接已关闭或发送队列已满时返回错误，不阻塞调用方。
	Send(data []byte) error

	// Close 主动关闭该连接。
	//
	// 说明：
	//   - 多次调用应是幂等的：对已关闭的连接再次调用 Close 不应引发 panic。
	Close() error
}

// Handler 由业务层实现，用于在连接生命周期的各个阶段插入自定义逻辑。
//
// 说明：
//   - OnMessage 在单个连接的读协程中被串行调用，
//     保证同一连接上的消息按到达顺序处理；
//   - 回调中应避免长时间阻塞网络收发。
type Handler interface {
	// OnConnected 在握手成功并创建好连接后被调用。
	OnConnected(sess Session)

	// OnMessage 在收到一条完整消息后被调用，data 为消息原始字节。
	OnMessage(sess Session, data []byte)

	// OnClosed 在连接生命周期结束时被调用。
	//
	// 参数 err 为关闭原因，正常关闭时可为 nil。
	OnClosed(sess Session, err error)
}
