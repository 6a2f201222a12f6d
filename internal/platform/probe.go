package platform

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// HTTPProbe проверяет сетевую доступность платформ.
// Любой HTTP ответ считается признаком доступности; офлайн - только сетевая ошибка.
type HTTPProbe struct {
	client  *http.Client
	logger  *slog.Logger
	targets []string
}

// NewHTTPProbe создает проверку доступности для базовых URL платформ
func NewHTTPProbe(logger *slog.Logger, timeout time.Duration, targets ...string) *HTTPProbe {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPProbe{
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
		targets: targets,
	}
}

// IsOnline возвращает true, если все платформы отвечают
func (p *HTTPProbe) IsOnline(ctx context.Context) bool {
	for _, target := range p.targets {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, target, nil)
		if err != nil {
			p.logger.WarnContext(ctx, "invalid probe target", slog.String("target", target), slog.Any("error", err))
			return false
		}

		resp, err := p.client.Do(req)
		if err != nil {
			p.logger.InfoContext(ctx, "platform unreachable", slog.String("target", target), slog.Any("error", err))
			return false
		}
		_ = resp.Body.Close()
	}

	return true
}
