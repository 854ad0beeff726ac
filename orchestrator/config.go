// Copyright 2025 ChurchOps
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import "time"

// This file holds the static rule tables as explicit configuration objects.
// Each component takes its table through the constructor so rule sets can be
// swapped per deployment or test without touching global state.

// Category names used to bucket both classifications and routes.
const (
	CategoryPeople     = "people"
	CategoryAttendance = "attendance"
	CategoryDonations  = "donations"
	CategoryGroups     = "groups"
)

// Downstream service names as they appear in the route catalog.
const (
	ServiceMembership = "membershipapi"
	ServiceAttendance = "attendanceapi"
	ServiceGiving     = "givingapi"
	ServiceGroups     = "groupsapi"
)

// SubjectRewrite maps an ambiguous question keyword to a canonical
// subject/attribute/value triple. Rewrites are checked in declaration order
// and the first keyword found in the question wins, so more specific
// keywords must come first.
type SubjectRewrite struct {
	Keyword   string
	Subject   string
	Attribute string
	Value     string
}

// ClassifierConfig holds the deterministic normalization tables applied to
// every classification, plus the keyword table driving the fallback path.
type ClassifierConfig struct {
	// SubjectRewrites are matched against the lower-cased question in order.
	SubjectRewrites []SubjectRewrite
	// AttributeSynonyms canonicalizes attribute names (e.g. sex -> gender).
	AttributeSynonyms map[string]string
	// ValueAliases canonicalizes attribute values (e.g. female -> Female).
	ValueAliases map[string]string
	// FallbackConfidence is assigned when classification falls back to
	// keyword matching.
	FallbackConfidence float64
}

// DefaultClassifierConfig returns the built-in normalization rules.
func DefaultClassifierConfig() ClassifierConfig {
	return ClassifierConfig{
		SubjectRewrites: []SubjectRewrite{
			{Keyword: "staff", Subject: CategoryPeople, Attribute: "membershipStatus", Value: "Staff"},
			{Keyword: "visitor", Subject: CategoryPeople, Attribute: "membershipStatus", Value: "Guest"},
			{Keyword: "guest", Subject: CategoryPeople, Attribute: "membershipStatus", Value: "Guest"},
			{Keyword: "women", Subject: CategoryPeople, Attribute: "gender", Value: "Female"},
			{Keyword: "woman", Subject: CategoryPeople, Attribute: "gender", Value: "Female"},
			{Keyword: "wife", Subject: CategoryPeople, Attribute: "gender", Value: "Female"},
			{Keyword: "wives", Subject: CategoryPeople, Attribute: "gender", Value: "Female"},
			{Keyword: "men", Subject: CategoryPeople, Attribute: "gender", Value: "Male"},
			{Keyword: "man", Subject: CategoryPeople, Attribute: "gender", Value: "Male"},
			{Keyword: "member", Subject: CategoryPeople, Attribute: "membershipStatus", Value: "Member"},
			{Keyword: "donation", Subject: CategoryDonations},
			{Keyword: "giving", Subject: CategoryDonations},
			{Keyword: "tithe", Subject: CategoryDonations},
			{Keyword: "attendance", Subject: CategoryAttendance},
			{Keyword: "group", Subject: CategoryGroups},
		},
		AttributeSynonyms: map[string]string{
			"membership": "membershipStatus",
			"status":     "membershipStatus",
			"sex":        "gender",
			"marital":    "maritalStatus",
			"age":        "birthDate",
			"birth":      "birthDate",
		},
		ValueAliases: map[string]string{
			"female":  "Female",
			"male":    "Male",
			"visitor": "Guest",
			"guest":   "Guest",
			"staff":   "Staff",
			"member":  "Member",
			"single":  "Single",
			"married": "Married",
		},
		FallbackConfidence: 0.3,
	}
}

// SelectorConfig holds the route-selection rule tables.
type SelectorConfig struct {
	// SubjectCategories maps classification subjects to a category.
	// Unknown subjects default to people.
	SubjectCategories map[string]string
	// CategoryServices maps each category to its expected service.
	CategoryServices map[string]string
	// RouteRules maps "<intent>_<category>" (and "default_<category>")
	// keys to ordered candidate route keys.
	RouteRules map[string][]string
	// FallbackRouteKey is the hard-coded safe route used when a category
	// yields no candidates at all. Its absence from the catalog is a fatal
	// configuration error.
	FallbackRouteKey string
	// ScanLimit bounds the catalog-scan fallback to the first N GET routes
	// of the expected service.
	ScanLimit int
}

// DefaultSelectorConfig returns the built-in selection matrix.
func DefaultSelectorConfig() SelectorConfig {
	return SelectorConfig{
		SubjectCategories: map[string]string{
			"people":     CategoryPeople,
			"person":     CategoryPeople,
			"members":    CategoryPeople,
			"families":   CategoryPeople,
			"households": CategoryPeople,
			"attendance": CategoryAttendance,
			"checkins":   CategoryAttendance,
			"services":   CategoryAttendance,
			"donations":  CategoryDonations,
			"giving":     CategoryDonations,
			"pledges":    CategoryDonations,
			"groups":     CategoryGroups,
			"teams":      CategoryGroups,
			"classes":    CategoryGroups,
		},
		CategoryServices: map[string]string{
			CategoryPeople:     ServiceMembership,
			CategoryAttendance: ServiceAttendance,
			CategoryDonations:  ServiceGiving,
			CategoryGroups:     ServiceGroups,
		},
		RouteRules: map[string][]string{
			"count_people":      {"membershipapi.GET./people"},
			"search_people":     {"membershipapi.GET./people/search", "membershipapi.GET./people"},
			"list_people":       {"membershipapi.GET./people"},
			"comparison_people": {"membershipapi.GET./people"},
			"aggregate_people":  {"membershipapi.GET./people"},
			"default_people":    {"membershipapi.GET./people"},

			"count_attendance":   {"attendanceapi.GET./attendance/summary", "attendanceapi.GET./attendance"},
			"list_attendance":    {"attendanceapi.GET./attendance"},
			"default_attendance": {"attendanceapi.GET./attendance"},

			"count_donations":     {"givingapi.GET./donations"},
			"aggregate_donations": {"givingapi.GET./donations"},
			"list_donations":      {"givingapi.GET./donations"},
			"default_donations":   {"givingapi.GET./donations"},

			"count_groups":   {"groupsapi.GET./groups"},
			"list_groups":    {"groupsapi.GET./groups"},
			"search_groups":  {"groupsapi.GET./groups/search", "groupsapi.GET./groups"},
			"default_groups": {"groupsapi.GET./groups"},
		},
		FallbackRouteKey: "membershipapi.GET./people",
		ScanLimit:        3,
	}
}

// ExecutorConfig holds the downstream HTTP execution tables.
type ExecutorConfig struct {
	// ServiceURLs maps canonical service names to base HTTP origins.
	ServiceURLs map[string]string
	// ServiceAliases maps catalog service names to the canonical
	// lower-cased key used in the per-request token map.
	ServiceAliases map[string]string
	// Timeout bounds each downstream call.
	Timeout time.Duration
}

// DefaultExecutorConfig returns the built-in service endpoint table.
// URLs are environment-specific and normally overridden from config.
func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		ServiceURLs: map[string]string{
			ServiceMembership: "http://membership-api:8080",
			ServiceAttendance: "http://attendance-api:8080",
			ServiceGiving:     "http://giving-api:8080",
			ServiceGroups:     "http://groups-api:8080",
		},
		ServiceAliases: map[string]string{
			"membership": ServiceMembership,
			"attendance": ServiceAttendance,
			"giving":     ServiceGiving,
			"donations":  ServiceGiving,
			"groups":     ServiceGroups,
		},
		Timeout: 12 * time.Second,
	}
}

// ProcessorConfig holds the field-extraction rule tables.
type ProcessorConfig struct {
	// ServiceCategories maps route services to a data category.
	ServiceCategories map[string]string
	// FieldRules maps category -> intent -> field names to retain.
	// The id field is always preserved even when absent from a rule list.
	FieldRules map[string]map[Intent][]string
}

// DefaultProcessorConfig returns the built-in extraction rules.
func DefaultProcessorConfig() ProcessorConfig {
	peopleBase := []string{"id", "name", "gender", "membershipStatus", "maritalStatus"}
	peopleComparison := []string{"id", "name", "gender", "membershipStatus", "maritalStatus", "birthDate", "householdId", "householdRole"}
	peopleAggregate := []string{"id", "name", "gender", "membershipStatus", "maritalStatus", "birthDate"}

	return ProcessorConfig{
		ServiceCategories: map[string]string{
			ServiceMembership: CategoryPeople,
			ServiceAttendance: CategoryAttendance,
			ServiceGiving:     CategoryDonations,
			ServiceGroups:     CategoryPeople,
		},
		FieldRules: map[string]map[Intent][]string{
			CategoryPeople: {
				IntentCount:      peopleBase,
				IntentSearch:     peopleBase,
				IntentList:       peopleBase,
				IntentComparison: peopleComparison,
				IntentAggregate:  peopleAggregate,
			},
			CategoryAttendance: {
				IntentCount:      {"id", "personId", "eventId", "date", "status"},
				IntentSearch:     {"id", "personId", "eventId", "date", "status"},
				IntentList:       {"id", "personId", "eventId", "date", "status"},
				IntentComparison: {"id", "personId", "eventId", "date", "status"},
				IntentAggregate:  {"id", "personId", "eventId", "date", "status"},
			},
			CategoryDonations: {
				IntentCount:      {"id", "personId", "amount", "fund", "date"},
				IntentSearch:     {"id", "personId", "amount", "fund", "date"},
				IntentList:       {"id", "personId", "amount", "fund", "date"},
				IntentComparison: {"id", "personId", "amount", "fund", "date"},
				IntentAggregate:  {"id", "personId", "amount", "fund", "date"},
			},
		},
	}
}
