// 包 fetch 封装 HTTP 客户端（代理/超时/重试），用于请求内容 API 与订阅。
package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"time"
)

const defaultUA = "go-spacetraveling/1.0 (+https://github.com)"

// StatusError 表示非 2xx 响应。
type StatusError struct {
	URL    string
	Status int
	Text   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http status %s: %s", e.Text, e.URL)
}

// IsStatus 判断 err 是否为指定状态码的 StatusError。
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Status == code
}

// Client 为带重试的 HTTP 客户端。
type Client struct {
	http    *http.Client
	retry   int
	backoff time.Duration
	headers map[string]string
}

// Options 为客户端构造参数。
type Options struct {
	ProxyHTTP  string
	ProxyHTTPS string
	Timeout    time.Duration
	Retry      int
	Backoff    time.Duration     // 每次重试递增的等待时间，默认 300ms
	Headers    map[string]string // 每个请求附带的固定请求头
}

// New 创建客户端，支持 http/https 代理与基础超时配置。
func New(opts Options) (*Client, error) {
	var proxyHTTP, proxyHTTPS *url.URL
	var err error
	if opts.ProxyHTTP != "" {
		if proxyHTTP, err = url.Parse(opts.ProxyHTTP); err != nil {
			return nil, fmt.Errorf("parse http proxy: %w", err)
		}
	}
	if opts.ProxyHTTPS != "" {
		if proxyHTTPS, err = url.Parse(opts.ProxyHTTPS); err != nil {
			return nil, fmt.Errorf("parse https proxy: %w", err)
		}
	}
	transport := &http.Transport{
		Proxy: func(req *http.Request) (*url.URL, error) {
			if req.URL.Scheme == "https" && proxyHTTPS != nil {
				return proxyHTTPS, nil
			}
			if req.URL.Scheme == "http" && proxyHTTP != nil {
				return proxyHTTP, nil
			}
			return http.ProxyFromEnvironment(req)
		},
		DialContext:           (&net.Dialer{Timeout: 10 * time.Second}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 300 * time.Millisecond
	}
	if opts.Retry < 0 {
		opts.Retry = 0
	}
	return &Client{
		http:    &http.Client{Transport: transport, Timeout: opts.Timeout},
		retry:   opts.Retry,
		backoff: opts.Backoff,
		headers: opts.Headers,
	}, nil
}

// Get 发起 GET 请求并在网络错误、5xx 与 429 时线性退避重试；其它 4xx 直接返回。
// 调用方负责关闭返回的 Body。
func (c *Client) Get(ctx context.Context, rawURL string) (*http.Response, error) {
	var lastErr error
	for i := 0; i <= c.retry; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, fmt.Errorf("new request: %w", err)
		}
		ua := os.Getenv("BLOG_UA")
		if ua == "" {
			ua = defaultUA
		}
		req.Header.Set("User-Agent", ua)
		for k, v := range c.headers {
			req.Header.Set(k, v)
		}
		resp, err := c.http.Do(req)
		if err == nil && resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp, nil
		}
		if err != nil {
			lastErr = err
		} else {
			resp.Body.Close()
			lastErr = &StatusError{URL: rawURL, Status: resp.StatusCode, Text: resp.Status}
			if resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
				return nil, lastErr
			}
		}
		if i == c.retry {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(i+1) * c.backoff):
		}
	}
	return nil, lastErr
}

// GetJSON 请求并将响应体解码到 out（最多读取 8MB）。
func (c *Client) GetJSON(ctx context.Context, rawURL string, out any) error {
	resp, err := c.Get(ctx, rawURL)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(io.LimitReader(resp.Body, 8<<20)).Decode(out); err != nil {
		return fmt.Errorf("decode json %s: %w", rawURL, err)
	}
	return nil
}
