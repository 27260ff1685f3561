package steps

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// DefaultHTTPTimeout — таймаут запроса по умолчанию.
	DefaultHTTPTimeout = 30 * time.Second

	maxResponseBody = 10 * 1024 * 1024 // 10 MB
)

// Client — HTTP клиент, через который шаги общаются с внешними сервисами.
//
// Статус ответа клиент не проверяет: решение принимает шаг.
type Client interface {
	Do(ctx context.Context, method, url string, body any) (*ClientResponse, error)
}

// ClientResponse — прочитанный HTTP ответ.
type ClientResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// DecodeJSON декодирует тело ответа в v.
// Числа внутри any остаются json.Number и уходят дальше без потери точности.
func (r *ClientResponse) DecodeJSON(v any) error {
	if err := decodeJSON(r.Body, v); err != nil {
		return fmt.Errorf("%w: %v", ErrDecodeResponse, err)
	}
	return nil
}

func decodeJSON(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return errors.New("trailing data after JSON value")
	}
	return nil
}

// HTTPClient — реализация Client поверх net/http.
type HTTPClient struct {
	client *http.Client
}

// NewHTTPClient создаёт HTTPClient с заданным таймаутом.
// Нулевой таймаут заменяется на DefaultHTTPTimeout.
func NewHTTPClient(timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}
	return &HTTPClient{
		client: &http.Client{Timeout: timeout},
	}
}

// NewHTTPClientWith оборачивает готовый *http.Client.
func NewHTTPClientWith(client *http.Client) *HTTPClient {
	return &HTTPClient{client: client}
}

// Do выполняет запрос. body, если не nil, сериализуется в JSON.
func (c *HTTPClient) Do(ctx context.Context, method, url string, body any) (*ClientResponse, error) {
	req, err := c.buildRequest(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrStepCancelled, ctx.Err())
		}
		return nil, fmt.Errorf("%w: %s %s: %v", ErrHTTPRequest, method, url, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("%w: read response body: %v", ErrHTTPRequest, err)
	}

	return &ClientResponse{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
	}, nil
}

// buildRequest создаёт HTTP запрос.
func (c *HTTPClient) buildRequest(ctx context.Context, method, url string, body any) (*http.Request, error) {
	var bodyReader io.Reader
	if body != nil {
		payload, err := serializeBody(body)
		if err != nil {
			return nil, fmt.Errorf("serialize body: %w", err)
		}
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	return req, nil
}

// serializeBody сериализует body в bytes.
func serializeBody(body any) ([]byte, error) {
	switch v := body.(type) {
	case []byte:
		return v, nil
	case json.RawMessage:
		return v, nil
	default:
		return json.Marshal(v)
	}
}
