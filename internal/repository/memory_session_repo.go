package repository

import (
	"context"
	"sync"
)

// MemorySessionRepo はプロセス内メモリを使用したセッションスロットストア。
// ローカル開発とテストで使用する。
type MemorySessionRepo struct {
	mu    sync.RWMutex
	slots map[string][]byte
}

// NewMemorySessionRepo はMemorySessionRepoを生成する。
func NewMemorySessionRepo() *MemorySessionRepo {
	return &MemorySessionRepo{slots: make(map[string][]byte)}
}

// Get は指定クライアントのスロットの値のコピーを返す。存在しない場合はnilを返す。
func (r *MemorySessionRepo) Get(_ context.Context, clientID string) ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	data, ok := r.slots[clientID]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), data...), nil
}

// Set はスロットの値を上書きする。
func (r *MemorySessionRepo) Set(_ context.Context, clientID string, data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.slots[clientID] = append([]byte(nil), data...)
	return nil
}

// Clear はスロットを削除する。
func (r *MemorySessionRepo) Clear(_ context.Context, clientID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.slots, clientID)
	return nil
}

// compile-time interface check
var _ SessionSlotStore = (*MemorySessionRepo)(nil)
