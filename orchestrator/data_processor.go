// Copyright 2025 ChurchOps
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/churchops/datapilot/shared/logger"
)

// Age bounds applied when deriving ages from birth dates. Values outside the
// range indicate bad data and are dropped.
const (
	minPlausibleAge = 0
	maxPlausibleAge = 150
)

// DataProcessor reduces a raw downstream payload to only the fields relevant
// to the classified intent, applies entity filters, computes aggregations,
// and produces a compact summary string.
type DataProcessor struct {
	config ProcessorConfig
	log    *logger.Logger
	now    func() time.Time
}

// NewDataProcessor creates a processor with the given extraction rules.
func NewDataProcessor(config ProcessorConfig, log *logger.Logger) *DataProcessor {
	return &DataProcessor{config: config, log: log, now: time.Now}
}

// Process reduces an API call result. Error or empty results short-circuit
// to a zeroed response whose summary says no data was found.
func (p *DataProcessor) Process(result ApiCallResult, cls QueryClassification) ProcessedResponse {
	start := time.Now()

	if result.Status == CallError || result.Data == nil {
		return emptyResponse(start, "No data found")
	}

	records := extractRecords(result.Data)
	if len(records) == 0 {
		return emptyResponse(start, "No data found")
	}

	category := p.categoryFor(result.Route.Route.Service, cls.Entities.Subject)
	fields := p.fieldsFor(category, cls.Intent)

	extracted := extractFields(records, fields)
	filtered := p.applyFilters(extracted, cls)

	var aggregations map[string]float64
	if cls.Intent == IntentCount || cls.Intent == IntentAggregate {
		aggregations = p.aggregate(filtered, category, cls.Intent)
	}

	summary := p.buildSummary(cls, category, len(filtered), aggregations)

	return ProcessedResponse{
		RelevantFields: filtered,
		Aggregations:   aggregations,
		Metadata: ProcessingMetadata{
			TotalRecords:     len(records),
			FilteredRecords:  len(filtered),
			FieldsExtracted:  fields,
			ProcessingTimeMs: time.Since(start).Milliseconds(),
		},
		Summary: summary,
	}
}

// categoryFor determines the data category, primarily from the route's
// service and falling back to the classified subject.
func (p *DataProcessor) categoryFor(service, subject string) string {
	if category, ok := p.config.ServiceCategories[strings.ToLower(service)]; ok {
		return category
	}

	switch strings.ToLower(subject) {
	case CategoryAttendance, "checkins":
		return CategoryAttendance
	case CategoryDonations, "giving":
		return CategoryDonations
	default:
		return CategoryPeople
	}
}

// fieldsFor resolves the per-category, per-intent field list. The id field
// is always preserved.
func (p *DataProcessor) fieldsFor(category string, intent Intent) []string {
	intentRules, ok := p.config.FieldRules[category]
	if !ok {
		intentRules = p.config.FieldRules[CategoryPeople]
	}

	fields, ok := intentRules[intent]
	if !ok {
		fields = intentRules[IntentSearch]
	}

	for _, f := range fields {
		if f == "id" {
			return fields
		}
	}
	return append([]string{"id"}, fields...)
}

// extractRecords normalizes the raw payload into a list of objects. Arrays
// are used directly; common envelope keys are unwrapped; a single object
// becomes a one-record list. Non-object entries are dropped.
func extractRecords(data interface{}) []map[string]interface{} {
	switch v := data.(type) {
	case []interface{}:
		return objectsOf(v)
	case map[string]interface{}:
		for _, key := range []string{"data", "items", "results", "records"} {
			if list, ok := v[key].([]interface{}); ok {
				return objectsOf(list)
			}
		}
		return []map[string]interface{}{v}
	default:
		return nil
	}
}

func objectsOf(list []interface{}) []map[string]interface{} {
	records := make([]map[string]interface{}, 0, len(list))
	for _, item := range list {
		if obj, ok := item.(map[string]interface{}); ok {
			records = append(records, obj)
		}
	}
	return records
}

// extractFields keeps only the rule-listed fields of each record. Extraction
// is idempotent: the rule list is a fixed point for a given category/intent.
func extractFields(records []map[string]interface{}, fields []string) []map[string]interface{} {
	extracted := make([]map[string]interface{}, 0, len(records))
	for _, record := range records {
		reduced := make(map[string]interface{}, len(fields))
		for _, field := range fields {
			if value, ok := record[field]; ok {
				reduced[field] = value
			}
		}
		extracted = append(extracted, reduced)
	}
	return extracted
}

// applyFilters keeps records whose attribute field matches the classified
// value, case-insensitively, by exact or substring match. Relationship-based
// filtering (e.g. "oldest wife") is a declared extension point and currently
// passes data through unfiltered.
func (p *DataProcessor) applyFilters(records []map[string]interface{}, cls QueryClassification) []map[string]interface{} {
	if cls.Entities.Relationship != "" {
		p.log.Debug("", "relationship filtering not implemented, passing data through", map[string]interface{}{
			"relationship": cls.Entities.Relationship,
		})
	}

	attribute := cls.Entities.Attribute
	value := cls.Entities.Value
	if attribute == "" || value == "" {
		return records
	}

	lowerValue := strings.ToLower(value)
	filtered := make([]map[string]interface{}, 0, len(records))
	for _, record := range records {
		raw, ok := record[attribute]
		if !ok {
			continue
		}
		fieldValue := strings.ToLower(fmt.Sprintf("%v", raw))
		if fieldValue == lowerValue || strings.Contains(fieldValue, lowerValue) {
			filtered = append(filtered, record)
		}
	}
	return filtered
}

// aggregate computes the numeric aggregations for count/aggregate intents.
func (p *DataProcessor) aggregate(records []map[string]interface{}, category string, intent Intent) map[string]float64 {
	aggregations := map[string]float64{
		"total_count": float64(len(records)),
	}

	if category == CategoryPeople {
		p.countBy(records, "gender", aggregations)
		p.countBy(records, "membershipStatus", aggregations)

		if intent == IntentAggregate {
			p.aggregateAges(records, aggregations)
		}
	}

	if category == CategoryDonations {
		p.aggregateAmounts(records, aggregations)
	}

	return aggregations
}

// countBy adds "<field>_<value>" counters for each distinct value of field.
func (p *DataProcessor) countBy(records []map[string]interface{}, field string, aggregations map[string]float64) {
	for _, record := range records {
		raw, ok := record[field]
		if !ok || raw == nil {
			continue
		}
		value := fmt.Sprintf("%v", raw)
		if value == "" {
			continue
		}
		aggregations[field+"_"+value]++
	}
}

// aggregateAges derives average/oldest/youngest ages from birthDate fields.
// Age is current year minus birth year; month and day are ignored, which can
// be off by one for anyone whose birthday has not yet occurred this year.
func (p *DataProcessor) aggregateAges(records []map[string]interface{}, aggregations map[string]float64) {
	currentYear := p.now().Year()

	var ages []int
	for _, record := range records {
		birthDate, ok := record["birthDate"].(string)
		if !ok {
			continue
		}
		year, ok := birthYear(birthDate)
		if !ok {
			continue
		}
		age := currentYear - year
		if age < minPlausibleAge || age > maxPlausibleAge {
			continue
		}
		ages = append(ages, age)
	}

	if len(ages) == 0 {
		return
	}

	sum, oldest, youngest := 0, ages[0], ages[0]
	for _, age := range ages {
		sum += age
		if age > oldest {
			oldest = age
		}
		if age < youngest {
			youngest = age
		}
	}

	aggregations["average_age"] = float64(sum) / float64(len(ages))
	aggregations["oldest_age"] = float64(oldest)
	aggregations["youngest_age"] = float64(youngest)
}

// aggregateAmounts sums donation amounts when present.
func (p *DataProcessor) aggregateAmounts(records []map[string]interface{}, aggregations map[string]float64) {
	var total float64
	count := 0
	for _, record := range records {
		amount, ok := numericValue(record["amount"])
		if !ok {
			continue
		}
		total += amount
		count++
	}

	if count == 0 {
		return
	}
	aggregations["total_amount"] = total
	aggregations["average_amount"] = total / float64(count)
}

// birthYear pulls the year out of a birth date string. ISO dates are the
// expected format; anything starting with a four-digit year parses.
func birthYear(birthDate string) (int, bool) {
	if len(birthDate) < 4 {
		return 0, false
	}
	year, err := strconv.Atoi(birthDate[:4])
	if err != nil || year < 1800 {
		return 0, false
	}
	return year, true
}

func numericValue(raw interface{}) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// buildSummary generates the one-line human-readable summary.
func (p *DataProcessor) buildSummary(cls QueryClassification, category string, filteredCount int, aggregations map[string]float64) string {
	subject := cls.Entities.Subject
	if subject == "" {
		subject = category
	}

	switch cls.Intent {
	case IntentCount:
		summary := fmt.Sprintf("Found %d %s", filteredCount, subject)
		if cls.Entities.Attribute != "" && cls.Entities.Value != "" {
			summary += fmt.Sprintf(" with %s=%q", cls.Entities.Attribute, cls.Entities.Value)
		}
		return summary

	case IntentAggregate:
		summary := fmt.Sprintf("Found %d %s", filteredCount, subject)
		if total, ok := aggregations["total_amount"]; ok {
			summary += fmt.Sprintf(" totaling $%.2f", total)
			if avg, ok := aggregations["average_amount"]; ok {
				summary += fmt.Sprintf(" (average $%.2f)", avg)
			}
		}
		if avgAge, ok := aggregations["average_age"]; ok {
			summary += fmt.Sprintf(", average age %.1f", avgAge)
		}
		return summary

	case IntentComparison:
		return fmt.Sprintf("Retrieved %d %s records for comparison analysis", filteredCount, subject)

	default:
		return fmt.Sprintf("Retrieved %d %s records", filteredCount, subject)
	}
}

func emptyResponse(start time.Time, summary string) ProcessedResponse {
	return ProcessedResponse{
		RelevantFields: []map[string]interface{}{},
		Metadata: ProcessingMetadata{
			TotalRecords:     0,
			FilteredRecords:  0,
			FieldsExtracted:  []string{},
			ProcessingTimeMs: time.Since(start).Milliseconds(),
		},
		Summary: summary,
	}
}
