package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Vesta-Code/vesta/internal/config"
)

// Confirmation is the provider's answer for one payment reference.
type Confirmation struct {
	Paid           bool  `json:"paid"`
	AmountCaptured int64 `json:"amount_captured"`
}

// Verifier checks a provider-issued payment reference. Paid=false is a hard
// rejection of the confirmation flow; transport errors surface as-is and map
// to an external-dependency failure at the caller.
type Verifier interface {
	Verify(ctx context.Context, reference string) (Confirmation, error)
}

// Module wires the payment verifier.
var Module = fx.Provide(NewVerifier)

// NewVerifier builds the configured verifier implementation.
func NewVerifier(cfg config.Config, logger *zap.Logger) (Verifier, error) {
	switch cfg.Payment.Provider {
	case "http":
		return &httpVerifier{
			baseURL: cfg.Payment.BaseURL,
			client:  &http.Client{Timeout: cfg.Payment.Timeout},
			logger:  logger,
		}, nil
	case "static":
		logger.Warn("using static payment verifier; every reference verifies as paid")
		return staticVerifier{}, nil
	default:
		return nil, fmt.Errorf("unsupported payment provider: %s", cfg.Payment.Provider)
	}
}

// httpVerifier calls the provider's confirmation endpoint.
type httpVerifier struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

func (v *httpVerifier) Verify(ctx context.Context, reference string) (Confirmation, error) {
	endpoint := fmt.Sprintf("%s/v1/payments/%s", v.baseURL, url.PathEscape(reference))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Confirmation{}, err
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return Confirmation{}, fmt.Errorf("payment provider unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return Confirmation{Paid: false}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return Confirmation{}, fmt.Errorf("payment provider returned status %d", resp.StatusCode)
	}

	var conf Confirmation
	if err := json.NewDecoder(resp.Body).Decode(&conf); err != nil {
		return Confirmation{}, fmt.Errorf("decode payment confirmation: %w", err)
	}
	return conf, nil
}

// staticVerifier approves everything; local development only.
type staticVerifier struct{}

func (staticVerifier) Verify(context.Context, string) (Confirmation, error) {
	return Confirmation{Paid: true, AmountCaptured: -1}, nil
}
