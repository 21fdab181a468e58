package results

import "github.com/raysh454/secboard/internal/model"

// SeverityCount is a (severity, count) pair, ordered highest severity first.
type SeverityCount struct {
	Severity model.Severity `json:"severity"`
	Count    int            `json:"count"`
}

// GroupBySeverity buckets findings by severity, preserving their order.
func GroupBySeverity(findings []model.Finding) map[model.Severity][]model.Finding {
	out := make(map[model.Severity][]model.Finding)
	for _, f := range findings {
		sev := f.Severity
		if sev == "" {
			sev = model.SeverityUnknown
		}
		out[sev] = append(out[sev], f)
	}
	return out
}

// SeverityCounts totals findings per severity across every host of a module.
// Every level is present in the output, including zero counts.
func SeverityCounts(mod model.ModuleResult) []SeverityCount {
	totals := make(map[model.Severity]int)
	for k, control := range mod {
		if k == model.QuantumMainKey {
			continue
		}
		for sev, fs := range GroupBySeverity(control.Findings) {
			totals[sev] += len(fs)
		}
	}

	out := make([]SeverityCount, 0, len(model.Severities()))
	for _, sev := range model.Severities() {
		out = append(out, SeverityCount{Severity: sev, Count: totals[sev]})
	}
	return out
}

// HighestSeverity returns the worst severity among findings, or
// SeverityUnknown with false when there are none.
func HighestSeverity(findings []model.Finding) (model.Severity, bool) {
	if len(findings) == 0 {
		return model.SeverityUnknown, false
	}
	worst := findings[0].Severity
	for _, f := range findings[1:] {
		if f.Severity.Rank() > worst.Rank() {
			worst = f.Severity
		}
	}
	return worst, true
}
