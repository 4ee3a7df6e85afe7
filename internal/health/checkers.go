// SPDX-License-Identifier: MIT

package health

import (
	"context"
	"fmt"
)

// CatalogSource reports how many channels are currently loaded.
type CatalogSource interface {
	ChannelCount() int
}

// CatalogChecker degrades when no playlist has been loaded yet. An empty
// catalog keeps the daemon alive but not ready.
type CatalogChecker struct {
	source CatalogSource
}

func NewCatalogChecker(source CatalogSource) *CatalogChecker {
	return &CatalogChecker{source: source}
}

func (c *CatalogChecker) Name() string { return "catalog" }

func (c *CatalogChecker) Check(_ context.Context) CheckResult {
	n := c.source.ChannelCount()
	if n == 0 {
		return CheckResult{
			Status:  StatusUnhealthy,
			Message: "no channels loaded",
		}
	}
	return CheckResult{
		Status:  StatusHealthy,
		Message: fmt.Sprintf("%d channels loaded", n),
	}
}

// Pinger covers stores and caches that can answer a ping.
type Pinger interface {
	HealthCheck(ctx context.Context) error
}

// PingChecker degrades when the backing service stops answering. Used for
// the Redis cache; its loss degrades but does not stop the viewer.
type PingChecker struct {
	name   string
	pinger Pinger
}

func NewPingChecker(name string, p Pinger) *PingChecker {
	return &PingChecker{name: name, pinger: p}
}

func (c *PingChecker) Name() string { return c.name }

func (c *PingChecker) Check(ctx context.Context) CheckResult {
	if err := c.pinger.HealthCheck(ctx); err != nil {
		return CheckResult{Status: StatusDegraded, Error: err.Error()}
	}
	return CheckResult{Status: StatusHealthy}
}
