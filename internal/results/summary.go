package results

import (
	"sort"
	"strings"
	"unicode"

	"github.com/raysh454/secboard/internal/model"
)

// Status is the traffic-light status of a control derived from its findings.
type Status string

const (
	StatusPass    Status = "pass"
	StatusPartial Status = "partial"
	StatusFail    Status = "fail"
)

// ModuleStatus derives a status from findings: any critical or high finding
// fails, any medium or low finding is partial, otherwise it passes.
func ModuleStatus(findings []model.Finding) Status {
	status := StatusPass
	for _, f := range findings {
		switch f.Severity {
		case model.SeverityCritical, model.SeverityHigh:
			return StatusFail
		case model.SeverityMedium, model.SeverityLow:
			status = StatusPartial
		}
	}
	return status
}

// ModuleSummary is one row of the dashboard's module overview.
type ModuleSummary struct {
	Name      string `json:"name"`
	Label     string `json:"label"`
	Passed    bool   `json:"passed"`
	HasErrors bool   `json:"has_errors"`
	Findings  int    `json:"findings"`
}

// Summary is the dashboard home overview.
type Summary struct {
	Domain        string          `json:"domain,omitempty"`
	TotalModules  int             `json:"total_modules"`
	PassedModules int             `json:"passed_modules"`
	FailedModules int             `json:"failed_modules"`
	Grade         string          `json:"grade"`
	Modules       []ModuleSummary `json:"modules"`
}

// Summarize counts a module as passed when its first control (in display
// order) is not an error. Modules with no controls are left out entirely.
func Summarize(r *model.ScanResult) Summary {
	s := Summary{Grade: Grade(0, 0), Modules: []ModuleSummary{}}
	if r == nil {
		return s
	}
	s.Domain = r.Domain

	names := make([]string, 0, len(r.GroupedResults))
	for name := range r.GroupedResults {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		mod := r.GroupedResults[name]
		keys := mod.Keys()
		if len(keys) == 0 {
			continue
		}
		ms := ModuleSummary{
			Name:      name,
			Label:     ModuleLabel(name),
			Passed:    !mod[keys[0]].IsError(),
			HasErrors: HasModuleErrors(r, name),
		}
		for _, k := range keys {
			if k == model.QuantumMainKey {
				continue
			}
			ms.Findings += len(mod[k].Findings)
		}
		s.Modules = append(s.Modules, ms)
		s.TotalModules++
		if ms.Passed {
			s.PassedModules++
		}
	}
	s.FailedModules = s.TotalModules - s.PassedModules
	s.Grade = Grade(s.PassedModules, s.TotalModules)
	return s
}

// Grade maps the share of passed modules onto a letter grade.
func Grade(passed, total int) string {
	if total <= 0 {
		return "N/A"
	}
	percent := float64(passed) / float64(total) * 100
	switch {
	case percent >= 90:
		return "A+"
	case percent >= 75:
		return "A"
	case percent >= 60:
		return "B"
	case percent >= 45:
		return "C"
	default:
		return "D"
	}
}

var moduleLabels = map[string]string{
	model.ModuleEmail:          "Email Security",
	model.ModuleAPI:            "API Security",
	model.ModuleApplication:    "Application Security",
	model.ModuleCloud:          "Cloud Security",
	model.ModuleDNS:            "DNS Security",
	model.ModuleData:           "Data Security",
	model.ModuleNetwork:        "Network Security",
	model.ModuleQuantum:        "Quantum Security",
	model.ModuleThirdPartyRisk: "Third-Party Risk Monitoring",
	model.ModuleSPF:            "SPF",
	model.ModuleDKIM:           "DKIM",
	model.ModuleDMARC:          "DMARC",
}

// ModuleLabel returns a human label; unknown camelCase names are split on
// capitals ("fooBarCheck" -> "Foo Bar Check").
func ModuleLabel(name string) string {
	if label, ok := moduleLabels[name]; ok {
		return label
	}
	var b strings.Builder
	for i, r := range name {
		if i == 0 {
			b.WriteRune(unicode.ToUpper(r))
			continue
		}
		if unicode.IsUpper(r) {
			b.WriteRune(' ')
		}
		b.WriteRune(r)
	}
	return b.String()
}
