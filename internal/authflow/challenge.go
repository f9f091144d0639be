package authflow

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Challenge はクライアントに紐付く人間確認（reCAPTCHA）の設定。
type Challenge struct {
	ID        string
	SiteKey   string
	CreatedAt time.Time
}

type challengeEntry struct {
	challenge Challenge
	lastUsed  time.Time
}

// ChallengeRegistry はクライアントごとの人間確認を管理する。
// 1クライアントにつき1つだけ生成し、再試行をまたいで再利用する。
type ChallengeRegistry struct {
	siteKey string
	now     func() time.Time

	mu      sync.Mutex
	entries map[string]*challengeEntry
}

// NewChallengeRegistry はChallengeRegistryを生成する。
func NewChallengeRegistry(siteKey string) *ChallengeRegistry {
	return &ChallengeRegistry{
		siteKey: siteKey,
		now:     time.Now,
		entries: make(map[string]*challengeEntry),
	}
}

// Ensure はクライアントの人間確認を返す。未生成の場合のみ生成する。
func (r *ChallengeRegistry) Ensure(clientID string) Challenge {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if e, ok := r.entries[clientID]; ok {
		e.lastUsed = now
		return e.challenge
	}

	c := Challenge{
		ID:        uuid.New().String(),
		SiteKey:   r.siteKey,
		CreatedAt: now,
	}
	r.entries[clientID] = &challengeEntry{challenge: c, lastUsed: now}
	return c
}

// Len は管理中の人間確認の数を返す。
func (r *ChallengeRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// evictIdle は最終使用からttlを超えたエントリを削除する。
func (r *ChallengeRegistry) evictIdle(ttl time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	removed := 0
	for id, e := range r.entries {
		if now.Sub(e.lastUsed) > ttl {
			delete(r.entries, id)
			removed++
		}
	}
	return removed
}
