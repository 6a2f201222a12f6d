package platform

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// CourseClient адаптер платформы курсов (REST API в стиле Canvas).
// remoteID - путь ресурса относительно /api/v1, например
// "courses/12/discussion_topics/34".
type CourseClient struct {
	client  *jsonClient
	baseURL string
}

type courseContent struct {
	Message string `json:"message"`
}

// NewCourseClient создает адаптер платформы курсов
func NewCourseClient(baseURL, token string, timeout time.Duration) *CourseClient {
	headers := http.Header{}
	if token != "" {
		headers.Set("Authorization", "Bearer "+token)
	}
	return &CourseClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  newJSONClient("course", timeout, headers),
	}
}

// GetContent возвращает текст объекта курса
func (c *CourseClient) GetContent(ctx context.Context, remoteID string) (string, error) {
	if err := checkRemoteID(remoteID); err != nil {
		return "", err
	}

	var content courseContent
	if err := c.client.do(ctx, "get content", http.MethodGet, c.url(remoteID), nil, &content); err != nil {
		return "", err
	}

	return content.Message, nil
}

// UpdateContent заменяет текст объекта курса
func (c *CourseClient) UpdateContent(ctx context.Context, remoteID, content string) error {
	if err := checkRemoteID(remoteID); err != nil {
		return err
	}

	return c.client.do(ctx, "update content", http.MethodPut, c.url(remoteID), courseContent{Message: content}, nil)
}

func (c *CourseClient) url(remoteID string) string {
	return c.baseURL + "/api/v1/" + strings.TrimLeft(remoteID, "/")
}
