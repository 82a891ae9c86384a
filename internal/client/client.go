// Package client реализует HTTP-клиент REST API магазина для утилит и тестов.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/linemk/topup-shop/internal/domain/models"
	"github.com/linemk/topup-shop/internal/lib/wait"
)

const (
	defaultAttempts       = 3
	defaultRetryDelay     = 2 * time.Second
	defaultLoginPoll      = 5 * time.Second
	defaultLoginTimeout   = 5 * time.Minute
	defaultSpinPoll       = 30 * time.Second
	defaultRequestTimeout = 30 * time.Second
)

var (
	ErrLoginDeclined = errors.New("telegram login declined")
	ErrLoginExpired  = errors.New("telegram login expired")
)

// APIError: ответ сервера со статусом 4xx/5xx
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// retryable: сетевые ошибки и 5xx
func retryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status >= http.StatusInternalServerError
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

type User struct {
	ID               int64  `json:"id"`
	Email            string `json:"email"`
	Name             string `json:"name"`
	TelegramID       *int64 `json:"telegram_id,omitempty"`
	TelegramUsername string `json:"telegram_username,omitempty"`
}

type AuthResponse struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}

type LoginStart struct {
	Code      string `json:"code"`
	BotURL    string `json:"bot_url"`
	ExpiresIn int    `json:"expires_in"`
}

type LoginStatus struct {
	Status string `json:"status"`
	Token  string `json:"token,omitempty"`
	User   *User  `json:"user,omitempty"`
}

type GiftState struct {
	FreeAvailable bool       `json:"free_available"`
	Tokens        int        `json:"tokens"`
	FreeNextAt    *time.Time `json:"free_next_at"`
	Balance       int64      `json:"balance"`
}

type SpinResult struct {
	GiftState
	ID            int64   `json:"id"`
	Prize         string  `json:"prize"`
	Source        string  `json:"source"`
	Status        string  `json:"status"`
	RequiresClaim bool    `json:"requires_claim"`
	Sector        int     `json:"sector"`
	Rotation      float64 `json:"rotation"`
}

type Client struct {
	baseURL      string
	http         *http.Client
	token        string
	attempts     uint
	retryDelay   time.Duration
	loginPoll    time.Duration
	loginTimeout time.Duration
	spinPoll     time.Duration
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.http = hc } }

func WithToken(token string) Option { return func(c *Client) { c.token = token } }

// WithRetryDelay задает паузу между повторами запросов админки
func WithRetryDelay(d time.Duration) Option { return func(c *Client) { c.retryDelay = d } }

// WithLoginPolling задает интервал и общий таймаут ожидания входа через Telegram
func WithLoginPolling(interval, timeout time.Duration) Option {
	return func(c *Client) {
		c.loginPoll = interval
		c.loginTimeout = timeout
	}
}

// WithSpinPolling задает интервал перепроверки бесплатного спина
func WithSpinPolling(interval time.Duration) Option { return func(c *Client) { c.spinPoll = interval } }

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		http:         &http.Client{Timeout: defaultRequestTimeout},
		attempts:     defaultAttempts,
		retryDelay:   defaultRetryDelay,
		loginPoll:    defaultLoginPoll,
		loginTimeout: defaultLoginTimeout,
		spinPoll:     defaultSpinPoll,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Token возвращает текущий bearer-токен
func (c *Client) Token() string { return c.token }

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var e struct {
			Error string `json:"error"`
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(raw, &e) != nil || e.Error == "" {
			e.Error = strings.TrimSpace(string(raw))
		}
		return &APIError{Status: resp.StatusCode, Message: e.Error}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// doRetry повторяет идемпотентные запросы при сетевых ошибках и 5xx
func (c *Client) doRetry(ctx context.Context, method, path string, out interface{}) error {
	return retry.Do(
		func() error { return c.do(ctx, method, path, nil, out) },
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.Delay(c.retryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.RetryIf(retryable),
		retry.LastErrorOnly(true),
	)
}

func (c *Client) Register(ctx context.Context, email, name, password string) (*AuthResponse, error) {
	var out AuthResponse
	in := map[string]string{"email": email, "name": name, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/register", in, &out); err != nil {
		return nil, err
	}
	c.token = out.Token
	return &out, nil
}

func (c *Client) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	var out AuthResponse
	in := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/login", in, &out); err != nil {
		return nil, err
	}
	c.token = out.Token
	return &out, nil
}

func (c *Client) StartTelegramLogin(ctx context.Context) (*LoginStart, error) {
	var out LoginStart
	if err := c.do(ctx, http.MethodPost, "/api/telegram-login-start", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) TelegramLoginStatus(ctx context.Context, code string) (*LoginStatus, error) {
	var out LoginStatus
	if err := c.do(ctx, http.MethodGet, "/api/telegram-login-status/"+url.PathEscape(code), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// WaitTelegramLogin опрашивает статус входа, пока пользователь не ответит в боте.
// После подтверждения клиент переходит на полученный токен.
func (c *Client) WaitTelegramLogin(ctx context.Context, code string) (*LoginStatus, error) {
	var result *LoginStatus
	err := wait.Poll(ctx, c.loginPoll, c.loginTimeout, func(ctx context.Context) (bool, error) {
		st, err := c.TelegramLoginStatus(ctx, code)
		if err != nil {
			return false, err
		}
		switch st.Status {
		case models.LoginStatusConfirmed:
			result = st
			return true, nil
		case models.LoginStatusDeclined:
			return false, ErrLoginDeclined
		case models.LoginStatusExpired:
			return false, ErrLoginExpired
		}
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	c.token = result.Token
	return result, nil
}

func (c *Client) GiftState(ctx context.Context, email string) (*GiftState, error) {
	var out GiftState
	if err := c.do(ctx, http.MethodGet, "/api/gift/state/"+url.PathEscape(email), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Spin(ctx context.Context, email string) (*SpinResult, error) {
	var out SpinResult
	if err := c.do(ctx, http.MethodPost, "/api/gift/spin", map[string]string{"userEmail": email}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// WaitFreeSpin ждет, пока станет доступен бесплатный спин
func (c *Client) WaitFreeSpin(ctx context.Context, email string) (*GiftState, error) {
	var state *GiftState
	err := wait.Poll(ctx, c.spinPoll, 0, func(ctx context.Context) (bool, error) {
		st, err := c.GiftState(ctx, email)
		if err != nil {
			return false, err
		}
		state = st
		if st.FreeAvailable {
			return true, nil
		}
		if st.FreeNextAt != nil {
			if err := wait.Until(ctx, *st.FreeNextAt); err != nil {
				return false, err
			}
		}
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	return state, nil
}

func (c *Client) AdminLogin(ctx context.Context, username, password string) error {
	var out struct {
		Token string `json:"token"`
	}
	in := map[string]string{"username": username, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/admin/login", in, &out); err != nil {
		return err
	}
	c.token = out.Token
	return nil
}

func pagePath(path string, limit, offset int) string {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	if offset > 0 {
		q.Set("offset", fmt.Sprint(offset))
	}
	if len(q) == 0 {
		return path
	}
	return path + "?" + q.Encode()
}

func (c *Client) AdminUsers(ctx context.Context, limit, offset int) ([]User, error) {
	var out []User
	err := c.doRetry(ctx, http.MethodGet, pagePath("/api/admin/users", limit, offset), &out)
	return out, err
}

func (c *Client) AdminOrders(ctx context.Context, limit, offset int) ([]models.Order, error) {
	var out []models.Order
	err := c.doRetry(ctx, http.MethodGet, pagePath("/api/admin/orders", limit, offset), &out)
	return out, err
}

func (c *Client) AdminTransactions(ctx context.Context, limit, offset int) ([]models.Transaction, error) {
	var out []models.Transaction
	err := c.doRetry(ctx, http.MethodGet, pagePath("/api/admin/transactions", limit, offset), &out)
	return out, err
}

func (c *Client) AdminWallets(ctx context.Context, limit, offset int) ([]models.Wallet, error) {
	var out []models.Wallet
	err := c.doRetry(ctx, http.MethodGet, pagePath("/api/admin/wallets", limit, offset), &out)
	return out, err
}

func (c *Client) AdminDraws(ctx context.Context, limit, offset int) ([]models.GiftDraw, error) {
	var out []models.GiftDraw
	err := c.doRetry(ctx, http.MethodGet, pagePath("/api/admin/gift-draws", limit, offset), &out)
	return out, err
}

// AdminDeposit не повторяется: пополнение не идемпотентно
func (c *Client) AdminDeposit(ctx context.Context, userID, amount int64, remark string) (*models.Wallet, error) {
	var out models.Wallet
	in := map[string]interface{}{"amount": amount, "remark": remark}
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/admin/wallets/%d/deposit", userID), in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
