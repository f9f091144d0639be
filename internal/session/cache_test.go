package session

import (
	"context"
	"errors"
	"testing"

	"github.com/hitoshi/agriguard/internal/model"
	"github.com/hitoshi/agriguard/internal/repository"
)

// failingStore はすべての操作でエラーを返すテスト用ストア。
type failingStore struct{}

func (failingStore) Get(context.Context, string) ([]byte, error) {
	return nil, errors.New("store down")
}
func (failingStore) Set(context.Context, string, []byte) error { return errors.New("store down") }
func (failingStore) Clear(context.Context, string) error       { return errors.New("store down") }

func TestCache_GetAbsent(t *testing.T) {
	cache := NewCache(repository.NewMemorySessionRepo())

	s, err := cache.Get(context.Background(), "client-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if s != nil {
		t.Errorf("Get() = %+v, want nil", s)
	}
}

func TestCache_SetThenGet_RoundTrip(t *testing.T) {
	cache := NewCache(repository.NewMemorySessionRepo())
	ctx := context.Background()

	want := &model.Session{DisplayName: "Asha", Email: "a@b.com", PhotoURL: "https://example.com/a.png"}
	if err := cache.Set(ctx, "client-1", want); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, err := cache.Get(ctx, "client-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if *got != *want {
		t.Errorf("Get() = %+v, want %+v", got, want)
	}

	// 同じ値を再度書き込んでも結果は変わらない
	if err := cache.Set(ctx, "client-1", want); err != nil {
		t.Fatalf("second Set() error = %v", err)
	}
	again, _ := cache.Get(ctx, "client-1")
	if *again != *want {
		t.Errorf("Get() after idempotent Set = %+v, want %+v", again, want)
	}
}

func TestCache_Clear(t *testing.T) {
	cache := NewCache(repository.NewMemorySessionRepo())
	ctx := context.Background()

	cache.Set(ctx, "client-1", &model.Session{DisplayName: "Asha"})
	if err := cache.Clear(ctx, "client-1"); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if err := cache.Clear(ctx, "client-1"); err != nil {
		t.Fatalf("Clear() on absent slot error = %v", err)
	}

	s, err := cache.Get(ctx, "client-1")
	if err != nil || s != nil {
		t.Errorf("Get() after Clear = %+v, %v; want nil, nil", s, err)
	}
}

func TestCache_GetMalformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", "not-json"},
		{"json array", `["Asha"]`},
		{"json string", `"Asha"`},
		{"wrong field type", `{"displayName":42}`},
		{"truncated", `{"displayName":"As`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := repository.NewMemorySessionRepo()
			store.Set(context.Background(), "client-1", []byte(tt.raw))

			_, err := NewCache(store).Get(context.Background(), "client-1")
			if !IsMalformed(err) {
				t.Errorf("Get() error = %v, want ErrMalformed", err)
			}
		})
	}
}

func TestCache_GetIgnoresUnknownFields(t *testing.T) {
	store := repository.NewMemorySessionRepo()
	store.Set(context.Background(), "client-1", []byte(`{"displayName":"Asha","uid":"u-1"}`))

	s, err := NewCache(store).Get(context.Background(), "client-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if s.DisplayName != "Asha" {
		t.Errorf("DisplayName = %q, want %q", s.DisplayName, "Asha")
	}
}

func TestCache_StoreFailure(t *testing.T) {
	cache := NewCache(failingStore{})
	ctx := context.Background()

	if _, err := cache.Get(ctx, "c"); err == nil || IsMalformed(err) {
		t.Errorf("Get() error = %v, want store error", err)
	}
	if err := cache.Set(ctx, "c", &model.Session{DisplayName: "A"}); err == nil {
		t.Error("Set() should return store error")
	}
	if err := cache.Clear(ctx, "c"); err == nil {
		t.Error("Clear() should return store error")
	}
}

func TestCache_SetNil(t *testing.T) {
	cache := NewCache(repository.NewMemorySessionRepo())
	if err := cache.Set(context.Background(), "c", nil); err == nil {
		t.Error("Set(nil) should return error")
	}
}
