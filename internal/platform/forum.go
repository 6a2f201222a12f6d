package platform

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ForumClient адаптер форума (REST API в стиле Discourse).
// remoteID - идентификатор поста.
type ForumClient struct {
	client  *jsonClient
	baseURL string
}

type forumPost struct {
	Raw string `json:"raw"`
}

type forumPostUpdate struct {
	Post forumPost `json:"post"`
}

// NewForumClient создает адаптер форума
func NewForumClient(baseURL, apiKey, apiUsername string, timeout time.Duration) *ForumClient {
	headers := http.Header{}
	if apiKey != "" {
		headers.Set("Api-Key", apiKey)
		headers.Set("Api-Username", apiUsername)
	}
	return &ForumClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  newJSONClient("forum", timeout, headers),
	}
}

// GetContent возвращает исходный текст поста
func (c *ForumClient) GetContent(ctx context.Context, remoteID string) (string, error) {
	if err := checkRemoteID(remoteID); err != nil {
		return "", err
	}

	var post forumPost
	if err := c.client.do(ctx, "get post", http.MethodGet, c.url(remoteID), nil, &post); err != nil {
		return "", err
	}

	return post.Raw, nil
}

// UpdateContent заменяет текст поста
func (c *ForumClient) UpdateContent(ctx context.Context, remoteID, content string) error {
	if err := checkRemoteID(remoteID); err != nil {
		return err
	}

	body := forumPostUpdate{Post: forumPost{Raw: content}}
	return c.client.do(ctx, "update post", http.MethodPut, c.url(remoteID), body, nil)
}

func (c *ForumClient) url(remoteID string) string {
	return c.baseURL + "/posts/" + url.PathEscape(remoteID) + ".json"
}
