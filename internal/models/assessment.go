package models

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Test-type codes used as catalog tags.
const (
	TestTypeAbility     = "A"
	TestTypeBiodata     = "B"
	TestTypeCompetency  = "C"
	TestTypeDevelopment = "D"
	TestTypeExercise    = "E"
	TestTypeKnowledge   = "K"
	TestTypePersonality = "P"
	TestTypeSimulation  = "S"
)

var testTypeNames = map[string]string{
	"ability & aptitude":              TestTypeAbility,
	"ability and aptitude":            TestTypeAbility,
	"biodata & situational judgement": TestTypeBiodata,
	"biodata & situational judgment":  TestTypeBiodata,
	"situational judgement":           TestTypeBiodata,
	"competencies":                    TestTypeCompetency,
	"development & 360":               TestTypeDevelopment,
	"assessment exercises":            TestTypeExercise,
	"knowledge & skills":              TestTypeKnowledge,
	"knowledge and skills":            TestTypeKnowledge,
	"personality & behavior":          TestTypePersonality,
	"personality & behaviour":         TestTypePersonality,
	"simulations":                     TestTypeSimulation,
	"simulation":                      TestTypeSimulation,
}

// TestTypeLabels maps codes to human readable category names.
var TestTypeLabels = map[string]string{
	TestTypeAbility:     "Ability & Aptitude",
	TestTypeBiodata:     "Biodata & Situational Judgement",
	TestTypeCompetency:  "Competencies",
	TestTypeDevelopment: "Development & 360",
	TestTypeExercise:    "Assessment Exercises",
	TestTypeKnowledge:   "Knowledge & Skills",
	TestTypePersonality: "Personality & Behavior",
	TestTypeSimulation:  "Simulations",
}

// NormalizeTestType converts a code or a full category name to its short code.
// Unknown values return an empty string.
func NormalizeTestType(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}

	upper := strings.ToUpper(trimmed)
	if _, ok := TestTypeLabels[upper]; ok {
		return upper
	}

	if code, ok := testTypeNames[strings.ToLower(trimmed)]; ok {
		return code
	}

	return ""
}

// NormalizeTestTypes normalizes and de-duplicates a list of test types, keeping order.
func NormalizeTestTypes(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		code := NormalizeTestType(v)
		if code == "" || seen[code] {
			continue
		}
		seen[code] = true
		out = append(out, code)
	}
	return out
}

// CatalogItem is one assessment product. Items are immutable once indexed.
type CatalogItem struct {
	ID              string    `gorm:"type:text;primary_key" json:"id"`
	URL             string    `gorm:"type:text;uniqueIndex" json:"url"`
	Name            string    `gorm:"type:text;not null" json:"name"`
	Description     string    `gorm:"type:text" json:"description"`
	DurationMinutes *int      `gorm:"type:integer" json:"duration,omitempty"`
	TestTypes       []string  `gorm:"serializer:json" json:"test_type"`
	RemoteSupport   bool      `gorm:"default:false" json:"remote_support"`
	AdaptiveSupport bool      `gorm:"default:false" json:"adaptive_support"`
	JobLevels       string    `gorm:"type:text" json:"job_levels"`
	Languages       string    `gorm:"type:text" json:"languages"`
	CreatedAt       time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"-"`
	UpdatedAt       time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"-"`
}

func (CatalogItem) TableName() string {
	return "catalog_items"
}

// ItemIDFromURL derives the stable item key from the canonical URL.
func ItemIDFromURL(rawURL string) string {
	canonical := strings.ToLower(strings.TrimRight(strings.TrimSpace(rawURL), "/"))
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(canonical)).String()
}

// HasTestType reports whether the item carries the given code.
func (c *CatalogItem) HasTestType(code string) bool {
	for _, t := range c.TestTypes {
		if t == code {
			return true
		}
	}
	return false
}

// EmbeddingText is the text the item is embedded from.
func (c *CatalogItem) EmbeddingText() string {
	parts := []string{fmt.Sprintf("Assessment: %s", c.Name)}

	if d := strings.TrimSpace(c.Description); d != "" {
		parts = append(parts, fmt.Sprintf("Description: %s", d))
	}

	if len(c.TestTypes) > 0 {
		labels := make([]string, 0, len(c.TestTypes))
		for _, code := range c.TestTypes {
			if label, ok := TestTypeLabels[code]; ok {
				labels = append(labels, label)
			}
		}
		parts = append(parts, fmt.Sprintf("Test types: %s", strings.Join(labels, ", ")))
	}

	if c.JobLevels != "" {
		parts = append(parts, fmt.Sprintf("Job levels: %s", c.JobLevels))
	}
	if c.Languages != "" {
		parts = append(parts, fmt.Sprintf("Languages: %s", c.Languages))
	}
	if c.DurationMinutes != nil {
		parts = append(parts, fmt.Sprintf("Duration: %d minutes", *c.DurationMinutes))
	}

	return strings.Join(parts, "\n")
}

// IndexedItem pairs a catalog item with its embedding vector.
type IndexedItem struct {
	Item   CatalogItem
	Vector []float32
}

// CatalogEntry is the on-disk representation of one catalog source record.
type CatalogEntry struct {
	Name            string       `json:"name"`
	URL             string       `json:"url"`
	Description     string       `json:"description"`
	Duration        FlexibleInt  `json:"duration"`
	TestType        []string     `json:"test_type"`
	RemoteSupport   YesNo        `json:"remote_support"`
	AdaptiveSupport YesNo        `json:"adaptive_support"`
	JobLevels       StringOrList `json:"job_levels"`
	Languages       StringOrList `json:"languages"`
}

// ToCatalogItem validates the entry and converts it. key is the source map key (canonical URL).
func (e *CatalogEntry) ToCatalogItem(key string) (*CatalogItem, error) {
	url := strings.TrimSpace(e.URL)
	if url == "" {
		url = strings.TrimSpace(key)
	}
	if url == "" {
		return nil, fmt.Errorf("catalog entry has no url")
	}

	name := strings.TrimSpace(e.Name)
	if name == "" {
		return nil, fmt.Errorf("catalog entry %s has no name", url)
	}

	if e.Duration.Value != nil && *e.Duration.Value < 0 {
		e.Duration.Value = nil
	}

	return &CatalogItem{
		ID:              ItemIDFromURL(url),
		URL:             url,
		Name:            name,
		Description:     strings.TrimSpace(e.Description),
		DurationMinutes: e.Duration.Value,
		TestTypes:       NormalizeTestTypes(e.TestType),
		RemoteSupport:   bool(e.RemoteSupport),
		AdaptiveSupport: bool(e.AdaptiveSupport),
		JobLevels:       string(e.JobLevels),
		Languages:       string(e.Languages),
	}, nil
}

// SortCatalogItems orders items by URL so indexing runs are reproducible.
func SortCatalogItems(items []CatalogItem) {
	sort.Slice(items, func(i, j int) bool { return items[i].URL < items[j].URL })
}

// YesNo accepts a JSON bool or a "Yes"/"No" string.
type YesNo bool

func (y *YesNo) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*y = YesNo(b)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		*y = false
		return nil
	}

	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "y", "true", "1":
		*y = true
	default:
		*y = false
	}
	return nil
}

// FlexibleInt accepts a number, a numeric string, or null. Anything else means unknown.
type FlexibleInt struct {
	Value *int
}

func (f *FlexibleInt) UnmarshalJSON(data []byte) error {
	f.Value = nil

	var n *float64
	if err := json.Unmarshal(data, &n); err == nil {
		if n != nil {
			v := int(*n)
			f.Value = &v
		}
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		fields := strings.Fields(s)
		if len(fields) == 0 {
			return nil
		}
		if v, err := strconv.Atoi(strings.TrimPrefix(fields[0], "=")); err == nil {
			f.Value = &v
		}
	}
	return nil
}

// StringOrList accepts a string or a list of strings and joins lists with ", ".
type StringOrList string

func (s *StringOrList) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		*s = StringOrList(strings.TrimSpace(str))
		return nil
	}

	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*s = StringOrList(strings.Join(list, ", "))
		return nil
	}

	*s = ""
	return nil
}
