package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/maheshrc27/postdispatch/internal/models"
	"github.com/maheshrc27/postdispatch/pkg/httpclient"
)

const (
	usb4gTimeout       = 30 * time.Second
	proxyAPITimeout    = 15 * time.Second
	cloudWorkerTimeout = 30 * time.Second

	airplaneModeSeconds = 10
)

// RotationStrategy asks the pool's control endpoint for a new outbound IP.
type RotationStrategy interface {
	Rotate(ctx context.Context, pool *models.IpPool) (string, error)
}

type rotationResponse struct {
	NewIP string `json:"newIp"`
	IP    string `json:"ip"`
}

func (r rotationResponse) address(preferIP bool) string {
	if preferIP && r.IP != "" {
		return r.IP
	}
	if r.NewIP != "" {
		return r.NewIP
	}
	return r.IP
}

type usb4gStrategy struct {
	client *httpclient.Client
}

func (s *usb4gStrategy) Rotate(ctx context.Context, pool *models.IpPool) (string, error) {
	cfg := pool.Config
	if cfg.ControlEndpoint == "" || cfg.AuthToken == "" {
		return "", errors.New("missing endpoint or auth token for USB 4G rotation")
	}

	body := map[string]any{"method": "airplane_mode", "duration": airplaneModeSeconds}
	var resp rotationResponse
	if err := s.client.PostJSON(ctx, joinURL(cfg.ControlEndpoint, "/rotate"), cfg.AuthToken, body, &resp); err != nil {
		return "", fmt.Errorf("USB 4G rotation failed: %w", err)
	}
	if resp.NewIP == "" {
		return "", errors.New("USB 4G rotation completed but no new IP returned")
	}
	return resp.NewIP, nil
}

type proxyAPIStrategy struct {
	client *httpclient.Client
}

func (s *proxyAPIStrategy) Rotate(ctx context.Context, pool *models.IpPool) (string, error) {
	cfg := pool.Config
	if cfg.APIEndpoint == "" || cfg.APIKey == "" {
		return "", errors.New("missing endpoint or api key for proxy API rotation")
	}

	var resp rotationResponse
	if err := s.client.PostJSON(ctx, joinURL(cfg.APIEndpoint, "/api/refresh-session"), cfg.APIKey, nil, &resp); err != nil {
		return "", fmt.Errorf("proxy API rotation failed: %w", err)
	}
	ip := resp.address(true)
	if ip == "" {
		return "", errors.New("proxy API rotation completed but no new IP returned")
	}
	return ip, nil
}

type cloudWorkerStrategy struct {
	client *httpclient.Client
}

func (s *cloudWorkerStrategy) Rotate(ctx context.Context, pool *models.IpPool) (string, error) {
	cfg := pool.Config
	if cfg.WorkerURL == "" {
		return "", errors.New("missing worker url for cloud worker rotation")
	}

	var resp rotationResponse
	if err := s.client.PostJSON(ctx, joinURL(cfg.WorkerURL, "/rotate"), cfg.APIKey, nil, &resp); err != nil {
		return "", fmt.Errorf("cloud worker rotation failed: %w", err)
	}
	ip := resp.address(false)
	if ip == "" {
		return "", errors.New("cloud worker rotation completed but no new IP returned")
	}
	return ip, nil
}

// RotationStrategies holds one strategy per pool type.
type RotationStrategies struct {
	USB4G       RotationStrategy
	ProxyAPI    RotationStrategy
	CloudWorker RotationStrategy
}

// DefaultRotationStrategies builds the HTTP strategies with their per-type
// timeouts.
func DefaultRotationStrategies() RotationStrategies {
	return RotationStrategies{
		USB4G:       &usb4gStrategy{client: httpclient.New().WithTimeout(usb4gTimeout)},
		ProxyAPI:    &proxyAPIStrategy{client: httpclient.New().WithTimeout(proxyAPITimeout)},
		CloudWorker: &cloudWorkerStrategy{client: httpclient.New().WithTimeout(cloudWorkerTimeout)},
	}
}

func (r RotationStrategies) strategyFor(poolType string) (RotationStrategy, error) {
	var s RotationStrategy
	switch poolType {
	case models.PoolTypeUSB4G:
		s = r.USB4G
	case models.PoolTypeProxyAPI:
		s = r.ProxyAPI
	case models.PoolTypeCloudWorker:
		s = r.CloudWorker
	}
	if s == nil {
		return nil, fmt.Errorf("unsupported pool type %q", poolType)
	}
	return s, nil
}

func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + path
}
