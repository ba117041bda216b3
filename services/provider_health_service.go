// services/provider_health_service.go
package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/promptpulse/pulse-workflows/internal/models"
)

// Prober is the health-probe surface of a provider client
type Prober interface {
	Ping(ctx context.Context) (int, error)
}

const (
	probeInterval = 60 * time.Second
	probeTimeout  = 10 * time.Second
)

type providerHealthService struct {
	dataForSEO Prober
	brightData Prober

	mu          sync.RWMutex
	active      string
	lastChecked time.Time

	ready    chan struct{}
	readyOnce sync.Once
	stop     chan struct{}
	stopOnce sync.Once
}

// NewProviderHealthService creates the provider-selection controller.
// DataForSEO is probed first and preferred when healthy.
func NewProviderHealthService(dataForSEO, brightData Prober) ProviderHealthService {
	return &providerHealthService{
		dataForSEO: dataForSEO,
		brightData: brightData,
		ready:      make(chan struct{}),
		stop:       make(chan struct{}),
	}
}

// Start launches the probe loop. The first probe runs immediately.
func (s *providerHealthService) Start(ctx context.Context) {
	go func() {
		s.probe(ctx)
		ticker := time.NewTicker(probeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.probe(ctx)
			case <-s.stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop halts the probe loop
func (s *providerHealthService) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// Active returns the currently healthy provider. The first call blocks until
// an initial probe completes.
func (s *providerHealthService) Active(ctx context.Context) (string, error) {
	select {
	case <-s.ready:
	case <-ctx.Done():
		return "", ctx.Err()
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.active == "" {
		return "", ErrAllProvidersDown
	}
	return s.active, nil
}

func (s *providerHealthService) probe(ctx context.Context) {
	active := ""
	if s.isHealthy(ctx, s.dataForSEO, models.ServiceDataForSEO) {
		active = models.ServiceDataForSEO
	} else if s.isHealthy(ctx, s.brightData, models.ServiceBrightData) {
		active = models.ServiceBrightData
	}

	s.mu.Lock()
	s.active = active
	s.lastChecked = time.Now()
	s.mu.Unlock()

	if active == "" {
		fmt.Printf("[ProviderHealthService] ❌ No healthy provider found\n")
	} else {
		fmt.Printf("[ProviderHealthService] ✅ Active provider: %s\n", active)
	}

	s.readyOnce.Do(func() { close(s.ready) })
}

func (s *providerHealthService) isHealthy(ctx context.Context, p Prober, name string) bool {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	code, err := p.Ping(probeCtx)
	if err != nil {
		fmt.Printf("[ProviderHealthService] ⚠️ Probe failed for %s: %v\n", name, err)
		return false
	}

	// 429 means rate-limited but up
	return (code >= 200 && code < 300) || code == 429
}
