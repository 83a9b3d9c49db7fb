package verify

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	xproxy "golang.org/x/net/proxy"

	"github.com/ukudarovv/instachecker-sub000/internal/models"
	"github.com/ukudarovv/instachecker-sub000/internal/vault"
)

const renderUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

// storedCookie is the shape of one entry in a session's decrypted cookie blob
type storedCookie struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Domain string `json:"domain,omitempty"`
	Path   string `json:"path,omitempty"`
}

// newProxyClient builds an HTTP client that routes through the given proxy,
// decrypting its credentials at dial time.
func newProxyClient(p *models.Proxy, cipher vault.Cipher, timeout time.Duration) (*http.Client, error) {
	transport := &http.Transport{
		TLSHandshakeTimeout: 15 * time.Second,
	}

	switch p.Scheme {
	case "socks5":
		var auth *xproxy.Auth
		if p.Username != "" {
			password, err := cipher.Decrypt(p.Password)
			if err != nil {
				return nil, fmt.Errorf("failed to decrypt proxy credentials: %w", err)
			}
			auth = &xproxy.Auth{User: p.Username, Password: string(password)}
		}
		dialer, err := xproxy.SOCKS5("tcp", p.Addr(), auth, &net.Dialer{Timeout: 15 * time.Second})
		if err != nil {
			return nil, fmt.Errorf("failed to build socks5 dialer: %w", err)
		}
		transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
			if cd, ok := dialer.(xproxy.ContextDialer); ok {
				return cd.DialContext(ctx, network, addr)
			}
			return dialer.Dial(network, addr)
		}
	case "http", "https":
		proxyURL := &url.URL{Scheme: p.Scheme, Host: p.Addr()}
		if p.Username != "" {
			password, err := cipher.Decrypt(p.Password)
			if err != nil {
				return nil, fmt.Errorf("failed to decrypt proxy credentials: %w", err)
			}
			proxyURL.User = url.UserPassword(p.Username, string(password))
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	default:
		return nil, fmt.Errorf("unsupported proxy scheme %q", p.Scheme)
	}

	return &http.Client{Transport: transport, Timeout: timeout}, nil
}

// newSessionClient builds an HTTP client carrying the session's cookies for
// the profile domain.
func newSessionClient(session *models.Session, cipher vault.Cipher, baseURL string, timeout time.Duration) (*http.Client, error) {
	plaintext, err := cipher.Decrypt(session.Cookies)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt session cookies: %w", err)
	}

	var stored []storedCookie
	if err := json.Unmarshal(plaintext, &stored); err != nil {
		return nil, fmt.Errorf("failed to parse session cookies: %w", err)
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid profile base URL: %w", err)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	cookies := make([]*http.Cookie, 0, len(stored))
	for _, c := range stored {
		path := c.Path
		if path == "" {
			path = "/"
		}
		cookies = append(cookies, &http.Cookie{
			Name:   c.Name,
			Value:  c.Value,
			Domain: c.Domain,
			Path:   path,
		})
	}
	jar.SetCookies(base, cookies)

	return &http.Client{Jar: jar, Timeout: timeout}, nil
}

// newDirectClient builds a plain client for unauthenticated probes
func newDirectClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}
