// Package session はクライアントごとのセッションキャッシュを提供する。
// セッションは検証・更新・失効されず、上書きまたはクリアされるまで有効。
package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/hitoshi/agriguard/internal/model"
	"github.com/hitoshi/agriguard/internal/repository"
)

// ErrMalformed はスロットにSessionとして解釈できない値が格納されている場合のエラー。
var ErrMalformed = model.ErrMalformedSession

// Cache はセッションスロットストアをSessionのシリアライズ形式で包むキャッシュ。
type Cache struct {
	store repository.SessionSlotStore
}

// NewCache はCacheを生成する。
func NewCache(store repository.SessionSlotStore) *Cache {
	return &Cache{store: store}
}

// Get は指定クライアントのSessionを取得する。
// 存在しない場合はnil, nilを返す。不正な値の場合はErrMalformedを返す。
func (c *Cache) Get(ctx context.Context, clientID string) (*model.Session, error) {
	data, err := c.store.Get(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}
	if data == nil {
		return nil, nil
	}

	s, err := model.ParseSession(data)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Set はSessionを1回の書き込みで上書きする。
func (c *Cache) Set(ctx context.Context, clientID string, s *model.Session) error {
	data, err := model.MarshalSession(s)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := c.store.Set(ctx, clientID, data); err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}
	return nil
}

// Clear はSessionを削除する。冪等。
func (c *Cache) Clear(ctx context.Context, clientID string) error {
	if err := c.store.Clear(ctx, clientID); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

// IsMalformed はエラーが不正なSession値によるものかを判定する。
func IsMalformed(err error) bool {
	return errors.Is(err, ErrMalformed)
}
