// Package notify предоставляет клиент шлюза сообщений: уведомления
// администратора и доставка кодов пользователю. Все вызовы — best-effort,
// их сбой никогда не откатывает бизнес-операцию.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// Gateway описывает исходящий контракт ядра к шлюзу сообщений.
type Gateway interface {
	SendText(ctx context.Context, chatID, text string) error
	SendFile(ctx context.Context, chatID, filename string, content []byte) error
}

// Client инкапсулирует HTTP-взаимодействие со шлюзом сообщений.
type Client struct {
	baseURL    string
	secret     string
	httpClient *retryablehttp.Client
}

// NewClient создаёт HTTP-клиент шлюза сообщений по указанному адресу.
func NewClient(baseURL, secret string) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 2
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.HTTPClient.Timeout = 5 * time.Second
	rc.Logger = nil

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		secret:     secret,
		httpClient: rc,
	}
}

type textMessage struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

type fileMessage struct {
	ChatID   string `json:"chat_id"`
	Filename string `json:"filename"`
	// Содержимое кодируется encoding/json как base64.
	Content []byte `json:"content"`
}

// SendText отправляет текстовое сообщение в указанный чат.
func (c *Client) SendText(ctx context.Context, chatID, text string) error {
	return c.post(ctx, "/api/messages", textMessage{ChatID: chatID, Text: text})
}

// SendFile отправляет файл с указанным именем в указанный чат.
func (c *Client) SendFile(ctx context.Context, chatID, filename string, content []byte) error {
	return c.post(ctx, "/api/files", fileMessage{ChatID: chatID, Filename: filename, Content: content})
}

func (c *Client) post(ctx context.Context, path string, payload any) error {
	if c == nil || c.baseURL == "" {
		return fmt.Errorf("gateway client not configured")
	}

	base := c.baseURL
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, base+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.secret != "" {
		req.Header.Set("Authorization", "Bearer "+c.secret)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	return nil
}
