package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// maxResponseSize ограничение тела ответа платформы
const maxResponseSize = 8 << 20

var errInvalidRemoteID = errors.New("invalid remote id")

// jsonClient общий HTTP транспорт адаптеров
type jsonClient struct {
	httpClient *http.Client
	headers    http.Header
	platform   string
}

func newJSONClient(platform string, timeout time.Duration, headers http.Header) *jsonClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &jsonClient{
		platform:   platform,
		headers:    headers,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// do выполняет JSON запрос. 404 превращается в ErrNotFound,
// остальные ошибки - в *TransportError.
func (c *jsonClient) do(ctx context.Context, op, method, url string, body, result any) error {
	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	for key, values := range c.headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Platform: c.platform, Op: op, Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return &TransportError{Platform: c.platform, Op: op, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s %s: %w", c.platform, op, ErrNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &TransportError{
			Platform:   c.platform,
			Op:         op,
			StatusCode: resp.StatusCode,
			Err:        errors.New(strings.TrimSpace(string(respBody))),
		}
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return &TransportError{Platform: c.platform, Op: op, Err: fmt.Errorf("failed to decode response: %w", err)}
		}
	}

	return nil
}

// checkRemoteID отклоняет пустые идентификаторы и выход за пределы API
func checkRemoteID(remoteID string) error {
	if remoteID == "" || strings.Contains(remoteID, "..") || strings.ContainsAny(remoteID, "?#") {
		return fmt.Errorf("%w: %q", errInvalidRemoteID, remoteID)
	}
	return nil
}
