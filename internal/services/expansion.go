package services

import (
	"regexp"
	"strings"
)

// expansionRule adds catalog-style terms when its pattern occurs in the query.
type expansionRule struct {
	pattern *regexp.Regexp
	terms   []string
}

// QueryExpander maps job-description vocabulary to the names assessments are published under.
type QueryExpander struct {
	rules []expansionRule
}

func NewQueryExpander() *QueryExpander {
	return &QueryExpander{rules: []expansionRule{
		{regexp.MustCompile(`(?i)\bjava\b`), []string{"Core Java", "Java Development"}},
		{regexp.MustCompile(`(?i)\bpython\b`), []string{"Python Programming"}},
		{regexp.MustCompile(`(?i)\bsql\b`), []string{"SQL Server", "Database Fundamentals"}},
		{regexp.MustCompile(`(?i)\bjavascript\b|\bfront[- ]?end\b`), []string{"JavaScript", "HTML/CSS"}},
		{regexp.MustCompile(`(?i)\bselenium\b|\bautomation\b`), []string{"Automation Testing", "Selenium"}},
		{regexp.MustCompile(`(?i)\bqa\b|\bmanual testing\b|\btester\b`), []string{"Manual Testing", "Software Testing"}},
		{regexp.MustCompile(`(?i)\bsales\b`), []string{"Sales Aptitude", "English Comprehension", "Verbal Communication"}},
		{regexp.MustCompile(`(?i)\bcommunicat\w*`), []string{"Interpersonal Communication", "Business Communication"}},
		{regexp.MustCompile(`(?i)\bleader\w*|\bmanager\b|\bcoo\b|\bexecutive\b`), []string{"Leadership Skills", "Management Competencies"}},
		{regexp.MustCompile(`(?i)\badmin\w*|\bbank\w*`), []string{"Computer Literacy", "Data Entry"}},
		{regexp.MustCompile(`(?i)\bseo\b`), []string{"Search Engine Optimization", "Digital Marketing"}},
		{regexp.MustCompile(`(?i)\banalyst\b|\bdata analysis\b`), []string{"Data Analysis", "Statistical Analysis"}},
		{regexp.MustCompile(`(?i)\bgraduates?\b|\bentry[- ]level\b|\bfreshers?\b`), []string{"Aptitude", "Learning Potential", "Cognitive Ability"}},
		{regexp.MustCompile(`(?i)\bcultur\w*`), []string{"Global Skills", "Cultural Competence"}},
		{regexp.MustCompile(`(?i)\bwriter\b|\bcontent\b|\bcopywrit\w*`), []string{"Written Communication", "Content Writing"}},
	}}
}

// Expand returns related terms for text, in rule order, skipping terms already present in skills.
func (q *QueryExpander) Expand(text string, skills []string) []string {
	seen := make(map[string]bool, len(skills))
	for _, s := range skills {
		seen[strings.ToLower(strings.TrimSpace(s))] = true
	}

	var out []string
	for _, rule := range q.rules {
		if !rule.pattern.MatchString(text) {
			continue
		}
		for _, term := range rule.terms {
			key := strings.ToLower(term)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, term)
		}
	}
	return out
}
