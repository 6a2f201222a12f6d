// Package api is the HTTP client of the operator API used by the CLI.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ordokr/LMS-sub004/internal/models"
	"github.com/ordokr/LMS-sub004/pkg/api"
)

// ErrUnauthorized сервер отклонил токен или учетные данные
var ErrUnauthorized = errors.New("unauthorized")

// StatusError ответ сервера с кодом вне 2xx
type StatusError struct {
	Message    string
	StatusCode int
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("server error (%d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("request failed with status %d", e.StatusCode)
}

// Unwrap позволяет проверять 401 через errors.Is(err, ErrUnauthorized)
func (e *StatusError) Unwrap() error {
	if e.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	return nil
}

// Client представляет HTTP клиент для взаимодействия с сервером
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

// NewClient создает новый API клиент
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			// полная синхронизация выполняется в рамках одного запроса
			Timeout: 10 * time.Minute,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("stopped after 10 redirects")
				}
				// Копируем заголовки Authorization при редиректе
				if len(via) > 0 && via[0].Header.Get("Authorization") != "" {
					req.Header.Set("Authorization", via[0].Header.Get("Authorization"))
				}
				return nil
			},
		},
	}
}

// SetToken задает access token для защищенных запросов
func (c *Client) SetToken(token string) {
	c.token = token
}

// Login выполняет аутентификацию оператора
func (c *Client) Login(ctx context.Context, req api.LoginRequest) (*api.TokenResponse, error) {
	var resp api.TokenResponse
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/auth/login", req, &resp); err != nil {
		return nil, fmt.Errorf("login request failed: %w", err)
	}
	return &resp, nil
}

// Health проверяет состояние сервера
func (c *Client) Health(ctx context.Context) (*api.HealthResponse, error) {
	var resp api.HealthResponse
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/health", nil, &resp); err != nil {
		return nil, fmt.Errorf("health request failed: %w", err)
	}
	return &resp, nil
}

// RunSync запускает полную синхронизацию и ждет ее завершения
func (c *Client) RunSync(ctx context.Context) (*api.SyncSummary, error) {
	var resp api.SyncSummary
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/sync", nil, &resp); err != nil {
		return nil, fmt.Errorf("sync request failed: %w", err)
	}
	return &resp, nil
}

// SyncStatus возвращает состояние полной синхронизации
func (c *Client) SyncStatus(ctx context.Context) (*api.SyncStatus, error) {
	var resp api.SyncStatus
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/sync/status", nil, &resp); err != nil {
		return nil, fmt.Errorf("sync status request failed: %w", err)
	}
	return &resp, nil
}

// ListEntities возвращает состояния сущностей; пустые kind и status не фильтруют
func (c *Client) ListEntities(ctx context.Context, kind, status string, limit int) ([]models.EntityVersionState, error) {
	q := url.Values{}
	if kind != "" {
		q.Set("entity_type", kind)
	}
	if status != "" {
		q.Set("status", status)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	var resp []models.EntityVersionState
	if err := c.doRequest(ctx, http.MethodGet, withQuery("/api/v1/entities", q), nil, &resp); err != nil {
		return nil, fmt.Errorf("list entities request failed: %w", err)
	}
	return resp, nil
}

// GetEntity возвращает состояние одной сущности
func (c *Client) GetEntity(ctx context.Context, kind, id string) (*models.EntityVersionState, error) {
	var resp models.EntityVersionState
	if err := c.doRequest(ctx, http.MethodGet, entityPath(kind, id, ""), nil, &resp); err != nil {
		return nil, fmt.Errorf("get entity request failed: %w", err)
	}
	return &resp, nil
}

// Detect проверяет конфликт сущности. nil req - содержимое читает сервер.
func (c *Client) Detect(ctx context.Context, kind, id string, req *api.DetectRequest) (*api.DetectResponse, error) {
	var body any
	if req != nil {
		body = req
	}

	var resp api.DetectResponse
	if err := c.doRequest(ctx, http.MethodPost, entityPath(kind, id, "detect"), body, &resp); err != nil {
		return nil, fmt.Errorf("detect request failed: %w", err)
	}
	return &resp, nil
}

// RecordEvent сообщает серверу об изменении сущности во внешней системе
func (c *Client) RecordEvent(ctx context.Context, kind, id string, req api.EventRequest) (*models.EntityVersionState, error) {
	var resp models.EntityVersionState
	if err := c.doRequest(ctx, http.MethodPost, entityPath(kind, id, "events"), req, &resp); err != nil {
		return nil, fmt.Errorf("record event request failed: %w", err)
	}
	return &resp, nil
}

// Resolve разрешает конфликт сущности
func (c *Client) Resolve(ctx context.Context, kind, id, strategy string) (*models.EntityVersionState, error) {
	var resp models.EntityVersionState
	req := api.ResolveRequest{Strategy: strategy}
	if err := c.doRequest(ctx, http.MethodPost, entityPath(kind, id, "resolve"), req, &resp); err != nil {
		return nil, fmt.Errorf("resolve request failed: %w", err)
	}
	return &resp, nil
}

// Transfer немедленно переносит содержимое сущности
func (c *Client) Transfer(ctx context.Context, kind, id, direction string) (*api.TransferResponse, error) {
	var resp api.TransferResponse
	req := api.TransferRequest{Direction: direction}
	if err := c.doRequest(ctx, http.MethodPost, entityPath(kind, id, "transfer"), req, &resp); err != nil {
		return nil, fmt.Errorf("transfer request failed: %w", err)
	}
	return &resp, nil
}

// Transactions возвращает журнал транзакций сущности, новые первыми
func (c *Client) Transactions(ctx context.Context, kind, id string, limit int) ([]models.SyncTransaction, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	var resp []models.SyncTransaction
	if err := c.doRequest(ctx, http.MethodGet, withQuery(entityPath(kind, id, "transactions"), q), nil, &resp); err != nil {
		return nil, fmt.Errorf("transactions request failed: %w", err)
	}
	return resp, nil
}

// PutMapping сохраняет идентификаторы сущности на платформах
func (c *Client) PutMapping(ctx context.Context, kind, id string, req api.MappingRequest) (*models.EntityMapping, error) {
	var resp models.EntityMapping
	if err := c.doRequest(ctx, http.MethodPut, mappingPath(kind, id), req, &resp); err != nil {
		return nil, fmt.Errorf("put mapping request failed: %w", err)
	}
	return &resp, nil
}

// GetMapping возвращает сопоставление сущности
func (c *Client) GetMapping(ctx context.Context, kind, id string) (*models.EntityMapping, error) {
	var resp models.EntityMapping
	if err := c.doRequest(ctx, http.MethodGet, mappingPath(kind, id), nil, &resp); err != nil {
		return nil, fmt.Errorf("get mapping request failed: %w", err)
	}
	return &resp, nil
}

// ListMappings возвращает сопоставления одного типа сущностей
func (c *Client) ListMappings(ctx context.Context, kind string) ([]models.EntityMapping, error) {
	var resp []models.EntityMapping
	if err := c.doRequest(ctx, http.MethodGet, mappingPath(kind, ""), nil, &resp); err != nil {
		return nil, fmt.Errorf("list mappings request failed: %w", err)
	}
	return resp, nil
}

// Enqueue ставит перенос в очередь повторов
func (c *Client) Enqueue(ctx context.Context, req api.EnqueueRequest) (*models.QueueItem, error) {
	var resp models.QueueItem
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/queue", req, &resp); err != nil {
		return nil, fmt.Errorf("enqueue request failed: %w", err)
	}
	return &resp, nil
}

// ListQueue возвращает элементы очереди; пустой status не фильтрует
func (c *Client) ListQueue(ctx context.Context, status string, limit int) ([]models.QueueItem, error) {
	q := url.Values{}
	if status != "" {
		q.Set("status", status)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	var resp []models.QueueItem
	if err := c.doRequest(ctx, http.MethodGet, withQuery("/api/v1/queue", q), nil, &resp); err != nil {
		return nil, fmt.Errorf("list queue request failed: %w", err)
	}
	return resp, nil
}

// GetQueueItem возвращает элемент очереди
func (c *Client) GetQueueItem(ctx context.Context, id string) (*models.QueueItem, error) {
	var resp models.QueueItem
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/queue/"+url.PathEscape(id), nil, &resp); err != nil {
		return nil, fmt.Errorf("get queue item request failed: %w", err)
	}
	return &resp, nil
}

// QueueStats возвращает число элементов очереди по статусам
func (c *Client) QueueStats(ctx context.Context) (map[string]int, error) {
	resp := map[string]int{}
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/queue/stats", nil, &resp); err != nil {
		return nil, fmt.Errorf("queue stats request failed: %w", err)
	}
	return resp, nil
}

// RetryQueueItem возвращает неудавшийся элемент в очередь
func (c *Client) RetryQueueItem(ctx context.Context, id string) (*models.QueueItem, error) {
	var resp models.QueueItem
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/queue/"+url.PathEscape(id)+"/retry", nil, &resp); err != nil {
		return nil, fmt.Errorf("retry request failed: %w", err)
	}
	return &resp, nil
}

// DrainQueue обрабатывает одну пачку очереди
func (c *Client) DrainQueue(ctx context.Context) (*api.DrainResponse, error) {
	var resp api.DrainResponse
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/queue/drain", nil, &resp); err != nil {
		return nil, fmt.Errorf("drain request failed: %w", err)
	}
	return &resp, nil
}

func entityPath(kind, id, action string) string {
	p := "/api/v1/entities/" + url.PathEscape(kind) + "/" + url.PathEscape(id)
	if action != "" {
		p += "/" + action
	}
	return p
}

func mappingPath(kind, id string) string {
	p := "/api/v1/mappings/" + url.PathEscape(kind)
	if id != "" {
		p += "/" + url.PathEscape(id)
	}
	return p
}

func withQuery(path string, q url.Values) string {
	if len(q) == 0 {
		return path
	}
	return path + "?" + q.Encode()
}

// doRequest выполняет HTTP запрос
func (c *Client) doRequest(ctx context.Context, method, path string, body, result any) error {
	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	// Проверяем статус код
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		statusErr := &StatusError{StatusCode: resp.StatusCode}
		var errResp api.ErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil {
			statusErr.Message = errResp.Message
		} else {
			statusErr.Message = strings.TrimSpace(string(respBody))
		}
		return statusErr
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}
