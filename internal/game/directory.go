package game

import (
	"sync"
)

// Binding 为一条连接到 (对局, 座位) 的绑定关系。
type Binding struct {
	GameID   string
	PlayerID string
	Name     string
}

type directoryEntry struct {
	conn Conn
	Binding
}

// Directory 维护 "连接 ID -> 绑定关系" 的映射。
//
// 约定：
//   - 每条连接至多绑定到一个座位；
//   - 同一 (对局, 座位) 在任一时刻至多有一条已绑定连接，
//     该约束由 Registry 在座位分配时保证。
type Directory struct {
	mu     sync.RWMutex
	byConn map[uint64]*directoryEntry
}

func NewDirectory() *Directory {
	return &Directory{
		byConn: make(map[uint64]*directoryEntry),
	}
}

// Bind 将连接绑定到给定座位，覆盖同一连接的旧绑定。
func (d *Directory) Bind(conn Conn, gameID, playerID, name string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.byConn[conn.ID()] = &directoryEntry{
		conn: conn,
		Binding: Binding{
			GameID:   gameID,
			PlayerID: playerID,
			Name:     name,
		},
	}
}

// Lookup 返回连接当前的绑定关系。
func (d *Directory) Lookup(connID uint64) (Binding, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	entry, ok := d.byConn[connID]
	if !ok {
		return Binding{}, false
	}
	return entry.Binding, true
}

// Unbind 解除连接的绑定关系，返回解除前的绑定。
func (d *Directory) Unbind(connID uint64) (Binding, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	entry, ok := d.byConn[connID]
	if !ok {
		return Binding{}, false
	}
	delete(d.byConn, connID)
	return entry.Binding, true
}

// Len 返回当前绑定的连接数量。
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.byConn)
}

// Range 遍历所有绑定。回调返回 false 时提前终止。
// 遍历基于一次快照，回调中可以安全地调用 Unbind。
func (d *Directory) Range(f func(conn Conn, b Binding) bool) {
	d.mu.RLock()
	entries := make([]*directoryEntry, 0, len(d.byConn))
	for _, entry := range d.byConn {
		entries = append(entries, entry)
	}
	d.mu.RUnlock()

	for _, entry := range entries {
		if !f(entry.conn, entry.Binding) {
			return
		}
	}
}
