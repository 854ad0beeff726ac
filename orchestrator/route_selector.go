// Copyright 2025 ChurchOps
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/churchops/datapilot/shared/logger"
)

// RouteSelector maps a classification to catalog routes using a static rule
// table plus a scoring function. It is a pure function of (classification,
// catalog, config): no I/O, no randomness, identical inputs always yield the
// identical primary route.
type RouteSelector struct {
	catalog *RouteCatalog
	config  SelectorConfig
	log     *logger.Logger
}

// NewRouteSelector creates a selector over the loaded catalog.
func NewRouteSelector(catalog *RouteCatalog, config SelectorConfig, log *logger.Logger) *RouteSelector {
	return &RouteSelector{catalog: catalog, config: config, log: log}
}

// SelectRoutes picks a primary route and up to two alternatives for the
// classification. The only error case is a fatal configuration problem: a
// category with zero candidates whose hard-coded fallback route is also
// missing from the catalog.
func (s *RouteSelector) SelectRoutes(cls QueryClassification) (RouteSelection, error) {
	category := s.categoryFor(cls.Entities.Subject)
	strategy := "rule_table"

	candidates := s.candidateRoutes(cls.Intent, category)
	if len(candidates) == 0 {
		candidates = s.scanCandidates(category)
		strategy = "catalog_scan"
	}

	if len(candidates) == 0 {
		fallback, ok := s.catalog.FindByKey(s.config.FallbackRouteKey)
		if !ok {
			return RouteSelection{}, fmt.Errorf("fallback route %q missing from catalog: fatal configuration error", s.config.FallbackRouteKey)
		}
		match := RouteMatch{
			Route:      fallback,
			Confidence: 0.3,
			Reason:     "no candidates for category " + category + ", using safe fallback",
			Priority:   0,
		}
		s.attachParameters(&match, cls)
		return RouteSelection{
			PrimaryRoute:      match,
			AlternativeRoutes: []RouteMatch{},
			SelectionStrategy: "fallback",
			TotalCandidates:   1,
		}, nil
	}

	scored := make([]RouteMatch, 0, len(candidates))
	for _, route := range candidates {
		scored = append(scored, s.scoreRoute(route, cls, category))
	}

	// Priority first, confidence second. Stable so rule-table order breaks
	// remaining ties deterministically.
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Priority != scored[j].Priority {
			return scored[i].Priority > scored[j].Priority
		}
		return scored[i].Confidence > scored[j].Confidence
	})

	primary := scored[0]
	s.attachParameters(&primary, cls)

	alternatives := make([]RouteMatch, 0, 2)
	for _, alt := range scored[1:] {
		if len(alternatives) == 2 {
			break
		}
		alternatives = append(alternatives, alt)
	}

	s.log.Debug("", "route selected", map[string]interface{}{
		"route_key":  primary.Route.RouteKey,
		"confidence": primary.Confidence,
		"strategy":   strategy,
		"candidates": len(scored),
	})

	return RouteSelection{
		PrimaryRoute:      primary,
		AlternativeRoutes: alternatives,
		SelectionStrategy: strategy,
		TotalCandidates:   len(scored),
	}, nil
}

// categoryFor maps a classification subject to a category. Unknown subjects
// default to people.
func (s *RouteSelector) categoryFor(subject string) string {
	if category, ok := s.config.SubjectCategories[strings.ToLower(subject)]; ok {
		return category
	}
	return CategoryPeople
}

// candidateRoutes resolves the rule table: "<intent>_<category>" first,
// then "default_<category>". Rule entries not present in the catalog are
// skipped.
func (s *RouteSelector) candidateRoutes(intent Intent, category string) []RouteIndex {
	keys, ok := s.config.RouteRules[string(intent)+"_"+category]
	if !ok {
		keys = s.config.RouteRules["default_"+category]
	}

	var routes []RouteIndex
	for _, key := range keys {
		if route, found := s.catalog.FindByKey(key); found {
			routes = append(routes, route)
		}
	}
	return routes
}

// scanCandidates is the last-resort rule: the first N GET routes of the
// category's expected service, in catalog order.
func (s *RouteSelector) scanCandidates(category string) []RouteIndex {
	service := s.config.CategoryServices[category]
	limit := s.config.ScanLimit
	if limit <= 0 {
		limit = 3
	}

	var routes []RouteIndex
	for _, route := range s.catalog.FindByService(service) {
		if !strings.EqualFold(route.Method, "GET") {
			continue
		}
		routes = append(routes, route)
		if len(routes) == limit {
			break
		}
	}
	return routes
}

// scoreRoute applies the additive scoring rules. Confidence is clamped to
// [0,1].
func (s *RouteSelector) scoreRoute(route RouteIndex, cls QueryClassification, category string) RouteMatch {
	confidence := 0.5
	priority := 1
	reasons := []string{"candidate for " + string(cls.Intent) + "_" + category}

	expectedService := s.config.CategoryServices[category]
	if strings.EqualFold(route.Service, expectedService) {
		confidence += 0.3
		priority += 2
		reasons = append(reasons, "service matches "+expectedService)
	}

	lowerPath := strings.ToLower(route.Path)
	switch cls.Intent {
	case IntentSearch:
		if strings.Contains(lowerPath, "search") {
			confidence += 0.3
			priority += 2
			reasons = append(reasons, "search endpoint")
		}
	case IntentCount, IntentAggregate, IntentList:
		if strings.EqualFold(route.Method, "GET") && !strings.Contains(route.Path, "{id}") {
			confidence += 0.2
			priority++
			reasons = append(reasons, "collection endpoint")
		}
	}

	if cls.Complexity == ComplexityComplex && strings.Contains(lowerPath, "summary") {
		confidence -= 0.1
		reasons = append(reasons, "summary endpoint penalized for complex query")
	}

	return RouteMatch{
		Route:      route,
		Confidence: clamp01(confidence),
		Reason:     strings.Join(reasons, "; "),
		Priority:   priority,
	}
}

// attachParameters synthesizes request parameters for search-style routes
// from the classified attribute and value.
func (s *RouteSelector) attachParameters(match *RouteMatch, cls QueryClassification) {
	if cls.Entities.Attribute == "" || cls.Entities.Value == "" {
		return
	}
	if !strings.Contains(strings.ToLower(match.Route.Path), "search") {
		return
	}
	match.Parameters.Conditions = []SearchCondition{
		{
			Field:    cls.Entities.Attribute,
			Operator: "equals",
			Value:    cls.Entities.Value,
		},
	}
}
