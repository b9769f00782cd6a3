package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const refreshCookieName = "refresh_token"

// Session 是客户端的登录状态，由调用方显式持有并传给 Client。
type Session struct {
	mu           sync.RWMutex
	accessToken  string
	refreshToken string
	expiresAt    time.Time
	username     string
}

// sessionFile 是 Session 落盘时的格式。
type sessionFile struct {
	Username     string    `json:"username"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
}

func (s *Session) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}

func (s *Session) Username() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.username
}

// LoggedIn 表示持有未过期的访问令牌。
func (s *Session) LoggedIn() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken != "" && (s.expiresAt.IsZero() || time.Now().Before(s.expiresAt))
}

func (s *Session) set(username, access, refresh string, expiresAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.username = username
	s.accessToken = access
	if refresh != "" {
		s.refreshToken = refresh
	}
	s.expiresAt = expiresAt
}

func (s *Session) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessToken, s.refreshToken, s.username = "", "", ""
	s.expiresAt = time.Time{}
}

// Save 把会话写入 path（权限 0600）。
func (s *Session) Save(path string) error {
	s.mu.RLock()
	data, err := json.MarshalIndent(sessionFile{
		Username:     s.username,
		AccessToken:  s.accessToken,
		RefreshToken: s.refreshToken,
		ExpiresAt:    s.expiresAt,
	}, "", "  ")
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

// LoadSession 读取 Save 写出的会话；文件不存在时返回空会话。
func LoadSession(path string) (*Session, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &Session{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}
	var f sessionFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	s := &Session{}
	s.set(f.Username, f.AccessToken, f.RefreshToken, f.ExpiresAt)
	return s, nil
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// TokenResponse 是登录与刷新接口的响应体。
type TokenResponse struct {
	AccessToken        string `json:"access_token"`
	TokenType          string `json:"token_type"`
	ExpiresIn          int    `json:"expires_in"`
	MustChangePassword bool   `json:"must_change_password"`
}

// Register 创建账号，不登录。
func (c *Client) Register(ctx context.Context, username, password string) error {
	return c.doJSON(ctx, http.MethodPost, "/auth/register", credentials{Username: username, Password: password}, nil)
}

// Login 换取令牌并写入 Session；刷新令牌取自响应 Cookie。
func (c *Client) Login(ctx context.Context, username, password string) (TokenResponse, error) {
	return c.tokenRequest(ctx, "/auth/login", credentials{Username: username, Password: password}, username)
}

// Refresh 用 Session 中的刷新令牌换取新的令牌对。
func (c *Client) Refresh(ctx context.Context) (TokenResponse, error) {
	c.session.mu.RLock()
	refresh, username := c.session.refreshToken, c.session.username
	c.session.mu.RUnlock()
	if refresh == "" {
		return TokenResponse{}, ErrUnauthorized
	}
	return c.tokenRequest(ctx, "/auth/refresh", map[string]string{"refresh_token": refresh}, username)
}

func (c *Client) tokenRequest(ctx context.Context, path string, body any, username string) (TokenResponse, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return TokenResponse{}, fmt.Errorf("encode %s: %w", path, err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, path, nil, bytes.NewReader(data), "application/json")
	if err != nil {
		return TokenResponse{}, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return TokenResponse{}, fmt.Errorf("POST %s: %w", path, err)
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return TokenResponse{}, err
	}

	var out TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return TokenResponse{}, fmt.Errorf("decode %s response: %w", path, err)
	}
	refresh := ""
	for _, cookie := range resp.Cookies() {
		if cookie.Name == refreshCookieName {
			refresh = cookie.Value
		}
	}
	var expiresAt time.Time
	if out.ExpiresIn > 0 {
		expiresAt = time.Now().Add(time.Duration(out.ExpiresIn) * time.Second)
	}
	c.session.set(username, out.AccessToken, refresh, expiresAt)
	return out, nil
}

// Logout 吊销刷新令牌并清空 Session；即使服务端失败也会清空本地状态。
func (c *Client) Logout(ctx context.Context) error {
	c.session.mu.RLock()
	refresh := c.session.refreshToken
	c.session.mu.RUnlock()
	defer c.session.clear()
	if refresh == "" {
		return nil
	}
	return c.doJSON(ctx, http.MethodPost, "/auth/logout", map[string]string{"refresh_token": refresh}, nil)
}

// User 是 /users/data 返回的当前用户。
type User struct {
	ID                 uint   `json:"id"`
	Username           string `json:"username"`
	IsAdmin            bool   `json:"is_admin"`
	MustChangePassword bool   `json:"must_change_password"`
}

// Me 返回当前登录用户。
func (c *Client) Me(ctx context.Context) (User, error) {
	var out struct {
		User User `json:"user"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/users/data", nil, &out); err != nil {
		return User{}, err
	}
	return out.User, nil
}
