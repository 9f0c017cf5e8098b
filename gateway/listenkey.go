package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// ListenKeyClient 管理用户数据流的 listenKey。listenKey 接口只需要
// API key 头，不需要签名。
type ListenKeyClient struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewListenKeyHTTPClient 提供一个短超时的 http.Client。
func NewListenKeyHTTPClient() *http.Client {
	return &http.Client{Timeout: 5 * time.Second}
}

// NewListenKey 创建新的 listenKey。
func (c *ListenKeyClient) NewListenKey(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/v3/userDataStream", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("X-MBX-APIKEY", c.APIKey)
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("new listenKey status %d", resp.StatusCode)
	}
	var body struct {
		ListenKey string `json:"listenKey"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", err
	}
	if body.ListenKey == "" {
		return "", fmt.Errorf("empty listenKey")
	}
	return body.ListenKey, nil
}

// KeepAlive 续期 listenKey；有效期 60 分钟，每 25 分钟续期一次。
func (c *ListenKeyClient) KeepAlive(ctx context.Context, listenKey string) error {
	q := url.Values{}
	q.Set("listenKey", listenKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.BaseURL+"/api/v3/userDataStream?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("X-MBX-APIKEY", c.APIKey)
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("keepalive status %d", resp.StatusCode)
	}
	return nil
}

// Close 关闭 listenKey。
func (c *ListenKeyClient) Close(ctx context.Context, listenKey string) error {
	q := url.Values{}
	q.Set("listenKey", listenKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.BaseURL+"/api/v3/userDataStream?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("X-MBX-APIKEY", c.APIKey)
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("close listenKey status %d", resp.StatusCode)
	}
	return nil
}
