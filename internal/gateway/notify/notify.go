package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Vesta-Code/vesta/internal/config"
)

// Dispatcher delivers fire-and-forget messages. Failures are for the caller
// to log and swallow; notification must never block or fail a money flow.
type Dispatcher interface {
	Send(ctx context.Context, recipient, message string) error
}

// Module wires the notification dispatcher.
var Module = fx.Provide(NewDispatcher)

// NewDispatcher builds the configured dispatcher implementation.
func NewDispatcher(cfg config.Config, logger *zap.Logger) (Dispatcher, error) {
	switch cfg.Notify.Driver {
	case "noop":
		logger.Info("notifications disabled; using noop dispatcher")
		return noopDispatcher{}, nil
	case "http":
		return &httpDispatcher{
			baseURL: cfg.Notify.BaseURL,
			sender:  cfg.Notify.Sender,
			client:  &http.Client{Timeout: cfg.Notify.Timeout},
		}, nil
	default:
		return nil, fmt.Errorf("unsupported notify driver: %s", cfg.Notify.Driver)
	}
}

type noopDispatcher struct{}

func (noopDispatcher) Send(context.Context, string, string) error { return nil }

type httpDispatcher struct {
	baseURL string
	sender  string
	client  *http.Client
}

func (d *httpDispatcher) Send(ctx context.Context, recipient, message string) error {
	payload, err := json.Marshal(map[string]string{
		"from":    d.sender,
		"to":      recipient,
		"message": message,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("notify gateway unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("notify gateway returned status %d", resp.StatusCode)
	}
	return nil
}
