package game

import (
	"sync"

	"go.uber.org/zap"

	"github.com/Pedro-5D/planchis/pkg/log"
	"github.com/Pedro-5D/planchis/pkg/metrics"
	"github.com/Pedro-5D/planchis/pkg/util/conc"
	"github.com/Pedro-5D/planchis/pkg/util/merr"
)

// outbound 为一次待广播的消息：已序列化的快照 + 目标连接。
// 快照在 Registry 锁内序列化一次，此后不再变化，发送可以安全并行。
type outbound struct {
	gameID string
	data   []byte
	conns  []Conn
}

// Broadcaster 将对局快照并发推送给一局内的全部连接。
//
// 单条连接的发送失败只记录日志与指标，
// 既不中断对其余连接的推送，也不让触发广播的业务操作失败。
type Broadcaster struct {
	pool *conc.Pool
}

// NewBroadcaster 创建广播器，poolSize 为并发发送协程数上限。
func NewBroadcaster(poolSize int) *Broadcaster {
	if poolSize <= 0 {
		poolSize = 64
	}
	return &Broadcaster{
		pool: conc.NewPool(poolSize, conc.WithConcealPanic(true)),
	}
}

// Broadcast 将消息推送给所有目标连接并等待全部发送完成。
// 返回所有失败连接的合并错误，调用方通常只用于测试断言。
func (b *Broadcaster) Broadcast(msg *outbound) error {
	if msg == nil || len(msg.conns) == 0 {
		return nil
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)

	for i := range msg.conns {
		conn := msg.conns[i]
		wg.Add(1)
		b.pool.Submit(func() {
			defer wg.Done()
			if err := conn.Send(msg.data); err != nil {
				metrics.BroadcastSendTotal.WithLabelValues(metrics.ResultFail).Inc()
				log.RatedWarn(1.0, "failed to push game update",
					zap.String("gameId", msg.gameID),
					zap.Uint64("connID", conn.ID()),
					zap.Error(err))
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
				return
			}
			metrics.BroadcastSendTotal.WithLabelValues(metrics.ResultOK).Inc()
		})
	}

	wg.Wait()
	return merr.Combine(errs...)
}

// Close 释放底层协程池。
func (b *Broadcaster) Close() {
	b.pool.Release()
}
