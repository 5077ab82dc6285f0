package smartclim

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// DiscoveryResult represents a discovered SmartClim sensor
type DiscoveryResult struct {
	Address string
	Name    string
	RSSI    int
}

// scanFunc streams advertisements until the context is done.
type scanFunc func(ctx context.Context, cfg *clientConfig, onFound func(DiscoveryResult)) error

// Discover scans for SmartClim sensors advertising nearby.
// The context controls the overall discovery duration.
// If the context has no deadline, a 10-second timeout is applied.
// Results are sorted by signal strength, strongest first.
func Discover(ctx context.Context, opts ...ClientOption) ([]DiscoveryResult, error) {
	return discover(ctx, scanBLE, opts...)
}

func discover(ctx context.Context, scan scanFunc, opts ...ClientOption) ([]DiscoveryResult, error) {
	cfg, err := applyOptions(opts)
	if err != nil {
		return nil, fmt.Errorf("invalid option: %w", err)
	}

	// Apply default timeout if context has no deadline
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("discovery canceled: %w", err)
	}

	var mu sync.Mutex
	found := make(map[string]DiscoveryResult)

	if cfg.logger != nil {
		cfg.logger.Debug("scanning for sensors", "adapter", cfg.adapter)
	}

	err = scan(ctx, cfg, func(r DiscoveryResult) {
		if !IsSmartClimName(r.Name) {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if _, seen := found[r.Address]; !seen && cfg.logger != nil {
			cfg.logger.Debug("sensor found", "addr", r.Address, "name", r.Name, "rssi", r.RSSI)
		}
		found[r.Address] = r
	})
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}

	mu.Lock()
	defer mu.Unlock()
	results := make([]DiscoveryResult, 0, len(found))
	for _, r := range found {
		results = append(results, r)
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].RSSI != results[j].RSSI {
			return results[i].RSSI > results[j].RSSI
		}
		return results[i].Address < results[j].Address
	})
	return results, nil
}

// IsSmartClimName reports whether an advertised local name belongs to a
// BeeWi SmartClim sensor ("Smart Clim", "BeeWi SmartClim", ...).
func IsSmartClimName(name string) bool {
	n := strings.ToLower(strings.ReplaceAll(name, " ", ""))
	return strings.Contains(n, "smartclim")
}
