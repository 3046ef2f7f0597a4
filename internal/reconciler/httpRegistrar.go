package reconciler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cmwillett/wapiti-sub000/config"
	"github.com/cmwillett/wapiti-sub000/internal/entity"
	"github.com/cmwillett/wapiti-sub000/pkg/queue"
)

// HTTPRegistrar is the Registrar implementation used when the reconciler runs
// in a separate process from the registration service. It speaks the
// subscription API, carrying the principal in the X-Principal header.
type HTTPRegistrar struct {
	baseURL   string
	principal string
	client    *http.Client
}

func NewHTTPRegistrar(baseURL, principal string) *HTTPRegistrar {
	return &HTTPRegistrar{
		baseURL:   baseURL,
		principal: principal,
		client:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (r *HTTPRegistrar) Register(ctx context.Context, req *entity.RegisterDeviceRequest) (*entity.DeviceRegistration, bool, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, false, fmt.Errorf("failed to marshal registration request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/api/v1/subscriptions", bytes.NewReader(body))
	if err != nil {
		return nil, false, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Principal", r.principal)

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return nil, false, fmt.Errorf("registration request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, false, fmt.Errorf("registration rejected with status %d", resp.StatusCode)
	}

	var reg entity.DeviceRegistration
	if err := json.NewDecoder(resp.Body).Decode(&reg); err != nil {
		return nil, false, fmt.Errorf("failed to decode registration response: %w", err)
	}
	return &reg, resp.StatusCode == http.StatusCreated, nil
}

func (r *HTTPRegistrar) RemoveEndpoint(ctx context.Context, ownerID, endpoint string) error {
	body, err := json.Marshal(map[string]string{"endpoint": endpoint})
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodDelete, r.baseURL+"/api/v1/subscriptions/endpoint", bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Principal", r.principal)

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("endpoint removal failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
		return entity.ErrRegistrationNotFound
	default:
		return fmt.Errorf("endpoint removal rejected with status %d", resp.StatusCode)
	}
}

// NewFromConfig assembles a reconciler from the application config: the retry
// bound and backoff base map onto the retry manager, the intervals onto the
// loop cadence.
func NewFromConfig(platform Platform, registrar Registrar, principal, deviceLabel string, cfg *config.ReconcilerConfig) *Reconciler {
	retry := queue.NewRetryManager(cfg.MaxSubscribeAttempts, cfg.BackoffBase)
	return New(platform, registrar, retry, Config{
		Principal:       principal,
		DeviceLabel:     deviceLabel,
		HealthInterval:  cfg.HealthInterval,
		FailureInterval: cfg.FailureInterval,
	})
}
