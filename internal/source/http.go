package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"topoviz/internal/topo"
)

// HTTPSource polls the inventory REST API.
type HTTPSource struct {
	base   string
	client *http.Client
}

func NewHTTPSource(baseURL string) *HTTPSource {
	return &HTTPSource{
		base: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (s *HTTPSource) Fetch(ctx context.Context) (topo.Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.base+"/topology", nil)
	if err != nil {
		return topo.Snapshot{}, fmt.Errorf("build topology request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return topo.Snapshot{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return topo.Snapshot{}, fmt.Errorf("%w: topology endpoint returned %d", ErrUnavailable, resp.StatusCode)
	}

	var snap topo.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return topo.Snapshot{}, fmt.Errorf("decode topology response: %w", err)
	}
	return snap, nil
}

func (s *HTTPSource) RunDiscovery(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.base+"/discovery/run", nil)
	if err != nil {
		return fmt.Errorf("build discovery request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("discovery trigger returned %d", resp.StatusCode)
	}
	return nil
}

func (s *HTTPSource) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, s.base+"/topology", nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: upstream returned %d", ErrUnavailable, resp.StatusCode)
	}
	return nil
}
