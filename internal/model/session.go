// Package model はドメインモデルを定義する。
package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// PlaceholderDisplayName は表示名が無い場合に画面クロームで使用する代替名。
const PlaceholderDisplayName = "User"

// ErrMalformedSession はキャッシュされた値がSessionとして解釈できない場合のエラー。
var ErrMalformedSession = errors.New("malformed session")

// Session は認証済みユーザーの表示用プロフィールを表す。
// システム内で唯一永続化される状態であり、上書きまたは明示的なクリアまで有効。
type Session struct {
	DisplayName string `json:"displayName"`
	Email       string `json:"email,omitempty"`    // 電話番号のみの登録では空
	PhotoURL    string `json:"photoURL,omitempty"` // 空の場合は汎用アイコンを表示する
}

// DisplayNameOrPlaceholder は画面表示用の名前を返す。
func (s *Session) DisplayNameOrPlaceholder() string {
	if s == nil || s.DisplayName == "" {
		return PlaceholderDisplayName
	}
	return s.DisplayName
}

// MarshalSession はSessionをキャッシュ保存用にシリアライズする。
func MarshalSession(s *Session) ([]byte, error) {
	if s == nil {
		return nil, fmt.Errorf("session is nil")
	}
	return json.Marshal(s)
}

// ParseSession はキャッシュから読み取った値をSessionに復元する。
// JSONオブジェクトでない値、またはフィールドの型が一致しない値はErrMalformedSessionを返す。
// 未知のフィールドは無視する。
func ParseSession(data []byte) (*Session, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, ErrMalformedSession
	}

	var raw struct {
		DisplayName *string `json:"displayName"`
		Email       *string `json:"email"`
		PhotoURL    *string `json:"photoURL"`
	}
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSession, err)
	}

	s := &Session{}
	if raw.DisplayName != nil {
		s.DisplayName = *raw.DisplayName
	}
	if raw.Email != nil {
		s.Email = *raw.Email
	}
	if raw.PhotoURL != nil {
		s.PhotoURL = *raw.PhotoURL
	}
	return s, nil
}

// AuthMethod は認証方式を表す。
type AuthMethod string

const (
	// AuthMethodFederated はGoogleによるフェデレーテッドログイン。
	AuthMethodFederated AuthMethod = "federated"
	// AuthMethodPassword はメールアドレスとパスワードによるログイン。
	AuthMethodPassword AuthMethod = "password"
	// AuthMethodRegister はメールアドレスとパスワードによる新規登録。
	AuthMethodRegister AuthMethod = "register"
	// AuthMethodPhone は電話番号OTPによるログイン。
	AuthMethodPhone AuthMethod = "phone"
	// AuthMethodSignOut はサインアウト。
	AuthMethodSignOut AuthMethod = "signout"
)

// AuthOutcome は認証イベントの結果を表す。
type AuthOutcome string

const (
	AuthOutcomeSuccess  AuthOutcome = "success"
	AuthOutcomeRejected AuthOutcome = "rejected"
	AuthOutcomeInvalid  AuthOutcome = "invalid"
	AuthOutcomeError    AuthOutcome = "error"
)

// AuthEvent は監査ログとして記録する認証イベント。
type AuthEvent struct {
	ID        string
	ClientID  string
	Method    AuthMethod
	Outcome   AuthOutcome
	ErrorCode string
	CreatedAt time.Time
}
