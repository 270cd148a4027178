package game

import (
	"github.com/Pedro-5D/planchis/internal/protocol"
	"github.com/Pedro-5D/planchis/pkg/metrics"
)

// Lobby 维护当前可公开加入的对局索引。
//
// 条目存在的充要条件：mode > 1 且对局未开始且已连接人数 < 所需人数，
// 该谓词由 Registry 在每次状态变更时维护。
//
// Lobby 自身不加锁，所有方法必须在 Registry 的互斥锁内调用。
type Lobby struct {
	entries map[string]*protocol.LobbyEntry
	// 按创建顺序维护对局 ID，保证列表输出稳定。
	order []string
}

func NewLobby() *Lobby {
	return &Lobby{
		entries: make(map[string]*protocol.LobbyEntry),
	}
}

// Upsert 新增或更新一条大厅记录。
func (l *Lobby) Upsert(entry *protocol.LobbyEntry) {
	if _, ok := l.entries[entry.GameID]; !ok {
		l.order = append(l.order, entry.GameID)
	}
	l.entries[entry.GameID] = entry
	metrics.NumLobbyGames.Set(float64(len(l.entries)))
}

// Remove 删除一条大厅记录，不存在时为幂等空操作。
func (l *Lobby) Remove(gameID string) {
	if _, ok := l.entries[gameID]; !ok {
		return
	}
	delete(l.entries, gameID)
	for i, id := range l.order {
		if id == gameID {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
	metrics.NumLobbyGames.Set(float64(len(l.entries)))
}

// UpdateConnected 刷新一条大厅记录的已连接人数。
func (l *Lobby) UpdateConnected(gameID string, connected int) {
	if entry, ok := l.entries[gameID]; ok {
		entry.ConnectedPlayers = connected
	}
}

// Contains 判断对局是否在大厅中。
func (l *Lobby) Contains(gameID string) bool {
	_, ok := l.entries[gameID]
	return ok
}

// List 按创建顺序返回所有大厅记录的副本。
func (l *Lobby) List() []protocol.LobbyEntry {
	out := make([]protocol.LobbyEntry, 0, len(l.entries))
	for _, id := range l.order {
		if entry, ok := l.entries[id]; ok {
			out = append(out, *entry)
		}
	}
	return out
}

// Len 返回大厅记录数量。
func (l *Lobby) Len() int {
	return len(l.entries)
}
