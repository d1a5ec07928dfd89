package security

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

// ImageRefGuard は出品に添付される画像URIの検証機能のインターフェースを定義する。
// 画像のアップロードは扱わず、公開済み画像への参照のみを受け付ける。
type ImageRefGuard interface {
	// ValidateImageURL は画像URIを静的に検証する。
	// http/httpsのみ許可し、プライベートIP・ループバック・リンクローカル・localhostを拒否する。
	ValidateImageURL(rawURL string) error

	// Probe は画像URIにHEADリクエストを送り、画像として取得できるかを確認する。
	// 2xx以外、またはContent-Typeがimage/*でない場合はエラーを返す。
	Probe(ctx context.Context, rawURL string) error
}

// allowedSchemes は画像URIで許可されるスキーム。
var allowedSchemes = []string{"http", "https"}

// blockedNetworks は画像URIで拒否するネットワーク範囲。
// パッケージ初期化時に1回だけパースする。
var blockedNetworks []net.IPNet

func init() {
	cidrs := []string{
		// プライベートIPアドレス (RFC 1918)
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		// ループバック (RFC 1122)
		"127.0.0.0/8",
		// リンクローカル (RFC 3927) - クラウドメタデータIP (169.254.169.254) を含む
		"169.254.0.0/16",
		// カレントネットワーク
		"0.0.0.0/8",
		// IPv6ループバック
		"::1/128",
		// IPv6リンクローカル
		"fe80::/10",
		// IPv6ユニークローカル
		"fc00::/7",
	}
	for _, cidr := range cidrs {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(fmt.Sprintf("invalid CIDR in blockedNetworks: %s: %v", cidr, err))
		}
		blockedNetworks = append(blockedNetworks, *network)
	}
}

// imageGuard はImageRefGuardの実装。
type imageGuard struct {
	client *http.Client
}

// NewImageGuard はsafeurlのHTTPクライアントを使うImageRefGuardを生成する。
// safeurlはDNS解決後のIPアドレスもDialerで検証するため、DNS再バインディングにも対応する。
func NewImageGuard(probeTimeout time.Duration) *imageGuard {
	config := safeurl.GetConfigBuilder().
		SetTimeout(probeTimeout).
		SetAllowedSchemes(allowedSchemes...).
		SetAllowedPorts(80, 443).
		Build()

	return &imageGuard{client: safeurl.Client(config).Client}
}

// NewImageGuardWithClient は任意のHTTPクライアントを使うImageRefGuardを生成する。
// テストでhttptestサーバーに対してProbeを実行する場合に使用する。
func NewImageGuardWithClient(client *http.Client) *imageGuard {
	return &imageGuard{client: client}
}

// Client はProbeに使用するHTTPクライアントを返す。
func (g *imageGuard) Client() *http.Client {
	return g.client
}

// ValidateImageURL は画像URIを静的に検証する。DNS解決は行わない。
func (g *imageGuard) ValidateImageURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("empty URL")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if !isAllowedScheme(scheme) {
		return fmt.Errorf("disallowed scheme: %q (allowed: %v)", scheme, allowedSchemes)
	}

	host := parsed.Hostname()
	if host == "" {
		return fmt.Errorf("empty host in URL: %s", rawURL)
	}

	if ip := net.ParseIP(host); ip != nil {
		if isBlockedIP(ip) {
			return fmt.Errorf("blocked IP address: %s", ip.String())
		}
		return nil
	}

	if isBlockedHostname(host) {
		return fmt.Errorf("blocked host: %s", host)
	}

	return nil
}

// Probe は画像URIにHEADリクエストを送り、画像として取得できるかを確認する。
// Content-Typeが返されない場合は画像とみなす。
func (g *imageGuard) Probe(ctx context.Context, rawURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build probe request: %w", err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("probe request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("probe returned status %d", resp.StatusCode)
	}

	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(strings.ToLower(ct), "image/") {
		return fmt.Errorf("not an image: content-type %q", ct)
	}

	return nil
}

// isAllowedScheme はURLスキームが許可リストに含まれるかを検証する。
func isAllowedScheme(scheme string) bool {
	for _, allowed := range allowedSchemes {
		if strings.EqualFold(scheme, allowed) {
			return true
		}
	}
	return false
}

// isBlockedIP はIPアドレスがブロック対象のネットワーク範囲に含まれるかを検証する。
func isBlockedIP(ip net.IP) bool {
	for _, network := range blockedNetworks {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// isBlockedHostname はホスト名がブロック対象かを検証する。
func isBlockedHostname(host string) bool {
	lower := strings.ToLower(host)
	return lower == "localhost" || strings.HasSuffix(lower, ".localhost")
}
