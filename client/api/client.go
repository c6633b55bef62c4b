package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/traPtitech/callsignal/signaling"
)

var json = jsoniter.ConfigFastest

// StatusError 想定外のステータスコードが返されたことを表すエラー
type StatusError struct {
	Path string
	Code int
}

// Error implements error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.Path, e.Code)
}

// Me 認証中のユーザー
type Me struct {
	UserID signaling.UserID `json:"userId"`
	Name   string           `json:"name"`
	Online bool             `json:"online"`
}

// ICEConfig ICEサーバー設定
type ICEConfig struct {
	ICEServers           []signaling.ICEServer `json:"iceServers"`
	ICECandidatePoolSize int                   `json:"iceCandidatePoolSize"`
}

// Client 中継サーバーのREST APIクライアント
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient Clientを生成します。baseURLはhttp(s)://host:portの形式です
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Me GET /api/v1/users/me
func (c *Client) Me(ctx context.Context) (*Me, error) {
	var me Me
	if err := c.get(ctx, "/api/v1/users/me", &me); err != nil {
		return nil, err
	}
	return &me, nil
}

// ICEServers GET /api/v1/ice-servers
func (c *Client) ICEServers(ctx context.Context) (*ICEConfig, error) {
	var config ICEConfig
	if err := c.get(ctx, "/api/v1/ice-servers", &config); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Client) get(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return &StatusError{Path: path, Code: res.StatusCode}
	}
	return json.NewDecoder(res.Body).Decode(v)
}

// WebSocketURL http(s)のURLをws(s)のURLに変換します
func WebSocketURL(baseURL string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme: %q", u.Scheme)
	}
	return strings.TrimSuffix(u.String(), "/"), nil
}
