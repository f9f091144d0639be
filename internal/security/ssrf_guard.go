// Package security はIdPとの通信およびIdP由来のプロフィール値の安全性を扱う。
package security

import (
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

// OutboundGuard はIdPクライアント用のHTTPクライアントを生成し、IdP由来のURLを検証する。
type OutboundGuard interface {
	// NewSafeClient はHTTPS:443以外と内部アドレスへの接続を接続時に拒否するクライアントを返す。
	NewSafeClient(timeout time.Duration) *http.Client

	// ValidateURL はDNS解決を行わずにURLを検証する。プロフィール画像URLの表示可否の判定に使う。
	ValidateURL(rawURL string) error
}

// ValidateURL が返すエラー
var (
	ErrUnsafeScheme = errors.New("url scheme must be http or https")
	ErrMissingHost  = errors.New("url has no host")
	ErrInternalHost = errors.New("url points to an internal address")
)

// CGNATとメタデータ用のリンクローカルは netip.Addr の判定メソッドで網羅されないため明示する。
var internalPrefixes = []netip.Prefix{
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("100.64.0.0/10"),
	netip.MustParsePrefix("169.254.0.0/16"),
}

// internalHostSuffixes はクラスタ内やクラウドのメタデータを指すホスト名。
var internalHostSuffixes = []string{".localhost", ".internal", ".local"}

type ssrfGuard struct{}

// NewSSRFGuard はsafeurlによるOutboundGuardを生成する。
func NewSSRFGuard() *ssrfGuard {
	return &ssrfGuard{}
}

// NewSafeClient はGoogleとIdentity Toolkitの呼び出しに使うクライアントを返す。
func (g *ssrfGuard) NewSafeClient(timeout time.Duration) *http.Client {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes("https").
		SetAllowedPorts(443).
		Build()

	return safeurl.Client(config).Client
}

// ValidateURL はIdPが返した画像URLが公開ホストを指すかを判定する。
// ホスト名の名前解決は行わない。画像はブラウザが直接取得し、サーバーからは取得しない。
func (g *ssrfGuard) ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return fmt.Errorf("%w: %q", ErrUnsafeScheme, u.Scheme)
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return ErrMissingHost
	}

	if addr, err := netip.ParseAddr(host); err == nil {
		if isInternalAddr(addr) {
			return fmt.Errorf("%w: %s", ErrInternalHost, addr)
		}
		return nil
	}

	if isInternalHostname(host) {
		return fmt.Errorf("%w: %s", ErrInternalHost, host)
	}
	return nil
}

func isInternalAddr(addr netip.Addr) bool {
	addr = addr.Unmap()
	if addr.IsLoopback() || addr.IsPrivate() || addr.IsUnspecified() ||
		addr.IsLinkLocalUnicast() || addr.IsLinkLocalMulticast() || addr.IsMulticast() {
		return true
	}
	for _, p := range internalPrefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

func isInternalHostname(host string) bool {
	host = strings.TrimSuffix(host, ".")
	if host == "localhost" {
		return true
	}
	for _, suffix := range internalHostSuffixes {
		if strings.HasSuffix(host, suffix) {
			return true
		}
	}
	return false
}
