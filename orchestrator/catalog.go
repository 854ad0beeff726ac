// Copyright 2025 ChurchOps
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// RouteIndex describes one known endpoint of a downstream data service.
// Entries are immutable once loaded; RouteKey is unique across the catalog.
type RouteIndex struct {
	Service      string   `json:"service"`
	Method       string   `json:"method"`
	Path         string   `json:"path"`
	Summary      string   `json:"summary"`
	Tags         []string `json:"tags"`
	RequiresAuth bool     `json:"requiresAuth"`
	RouteKey     string   `json:"routeKey"`
}

// RouteCatalog is the process-wide, read-only list of known routes.
// It is loaded once at startup and never mutated, so concurrent reads
// need no locking.
type RouteCatalog struct {
	routes []RouteIndex
	byKey  map[string]RouteIndex
}

// NewRouteCatalog builds a catalog from already-decoded entries.
// Duplicate route keys are rejected.
func NewRouteCatalog(routes []RouteIndex) (*RouteCatalog, error) {
	byKey := make(map[string]RouteIndex, len(routes))
	for _, r := range routes {
		if r.RouteKey == "" {
			return nil, fmt.Errorf("route %s %s %s has empty routeKey", r.Service, r.Method, r.Path)
		}
		if _, exists := byKey[r.RouteKey]; exists {
			return nil, fmt.Errorf("duplicate routeKey %q in catalog", r.RouteKey)
		}
		byKey[r.RouteKey] = r
	}

	return &RouteCatalog{routes: routes, byKey: byKey}, nil
}

// LoadCatalog reads the pre-generated route index file. A missing or
// malformed file is a fatal startup condition for callers that need it.
func LoadCatalog(path string) (*RouteCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read route catalog %s: %w", path, err)
	}

	var routes []RouteIndex
	if err := json.Unmarshal(data, &routes); err != nil {
		return nil, fmt.Errorf("failed to parse route catalog %s: %w", path, err)
	}
	if len(routes) == 0 {
		return nil, fmt.Errorf("route catalog %s contains no routes", path)
	}

	return NewRouteCatalog(routes)
}

// Len returns the number of routes in the catalog.
func (c *RouteCatalog) Len() int {
	return len(c.routes)
}

// Routes returns all catalog entries in load order.
func (c *RouteCatalog) Routes() []RouteIndex {
	return c.routes
}

// FindByKey looks up a route by its unique key.
func (c *RouteCatalog) FindByKey(key string) (RouteIndex, bool) {
	r, ok := c.byKey[key]
	return r, ok
}

// FindByService returns all routes for a service, matched case-insensitively.
func (c *RouteCatalog) FindByService(service string) []RouteIndex {
	var matches []RouteIndex
	for _, r := range c.routes {
		if strings.EqualFold(r.Service, service) {
			matches = append(matches, r)
		}
	}
	return matches
}
