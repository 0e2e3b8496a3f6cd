package service

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"bybit_bot/internal/models"
)

const (
	categoryLinear = "linear"
	recvWindow     = "5000"
)

// Ожидаемые «не-ошибки» биржи: плечо уже такое / ордер уже снят.
// Для ядра это штатный исход, а не сбой.
var (
	ErrLeverageNotModified = errors.New("leverage not modified")
	ErrOrderGone           = errors.New("order already cancelled or filled")
)

type Client struct {
	account   models.Account
	baseURL   string
	apiKey    string
	apiSecret string
	http      *http.Client
}

func NewClient(account models.Account, baseURL, apiKey, apiSecret string) *Client {
	return &Client{
		account:   account,
		baseURL:   baseURL,
		apiKey:    apiKey,
		apiSecret: apiSecret,
		http:      &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) Account() models.Account { return c.account }

// sign — HMAC-SHA256(ts + apiKey + recvWindow + payload), hex.
// payload: queryString для GET, json-тело для POST.
func (c *Client) sign(ts, payload string) string {
	mac := hmac.New(sha256.New, []byte(c.apiSecret))
	mac.Write([]byte(ts + c.apiKey + recvWindow + payload))
	return hex.EncodeToString(mac.Sum(nil))
}

func (c *Client) doGet(ctx context.Context, path, query string, out any) error {
	url := c.baseURL + path
	if query != "" {
		url += "?" + query
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("doGet new request: %w", err)
	}

	ts := strconv.FormatInt(time.Now().UnixMilli(), 10)
	req.Header.Set("X-BAPI-API-KEY", c.apiKey)
	req.Header.Set("X-BAPI-TIMESTAMP", ts)
	req.Header.Set("X-BAPI-RECV-WINDOW", recvWindow)
	req.Header.Set("X-BAPI-SIGN", c.sign(ts, query))

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("doGet do: %w", err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("doGet http %d: %s", resp.StatusCode, string(data))
	}

	return decodeEnvelope(data, out)
}

func (c *Client) doPost(ctx context.Context, path string, payload []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("doPost new request: %w", err)
	}

	ts := strconv.FormatInt(time.Now().UnixMilli(), 10)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-BAPI-API-KEY", c.apiKey)
	req.Header.Set("X-BAPI-TIMESTAMP", ts)
	req.Header.Set("X-BAPI-RECV-WINDOW", recvWindow)
	req.Header.Set("X-BAPI-SIGN", c.sign(ts, string(payload)))

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("doPost do: %w", err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("doPost http %d: %s", resp.StatusCode, string(data))
	}

	return decodeEnvelope(data, out)
}
