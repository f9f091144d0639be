package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// ProfileSanitizer はIdPやユーザー入力から得たプロフィール値を画面表示用に整える。
type ProfileSanitizer struct {
	policy *bluemonday.Policy
	guard  OutboundGuard
}

// NewProfileSanitizer はProfileSanitizerを生成する。
// 表示名にはすべてのタグを除去するStrictPolicyを適用する。
func NewProfileSanitizer(guard OutboundGuard) *ProfileSanitizer {
	return &ProfileSanitizer{
		policy: bluemonday.StrictPolicy(),
		guard:  guard,
	}
}

// DisplayName はマークアップを除去し、空白を正規化した表示名を返す。
// 除去の結果が空になった場合は空文字列を返す。
func (s *ProfileSanitizer) DisplayName(raw string) string {
	stripped := s.policy.Sanitize(raw)
	// StrictPolicyはエンティティをエスケープするため、JSON応答用に戻す
	plain := html.UnescapeString(stripped)
	return strings.Join(strings.Fields(plain), " ")
}

// PhotoURL は公開されたhttp(s)のURLのみを返す。それ以外は空文字列。
func (s *ProfileSanitizer) PhotoURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if err := s.guard.ValidateURL(raw); err != nil {
		return ""
	}
	return raw
}
