package results

import (
	"math"
	"sort"

	"github.com/raysh454/secboard/internal/model"
)

// baseBreachImpact is the dollar impact attributed to a severity score of 10.
const baseBreachImpact = 1_000_000

// NamedCount is a generic chart bucket.
type NamedCount struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

// RadarPoint is one axis of the quantum risk radar.
type RadarPoint struct {
	Subject  string  `json:"subject"`
	Value    float64 `json:"value"`
	FullMark float64 `json:"full_mark"`
}

// QuantumOverview is everything the quantum security page charts.
type QuantumOverview struct {
	Domain               string                 `json:"domain"`
	Vulnerable           bool                   `json:"vulnerable"`
	SeverityScore        float64                `json:"severity_score"`
	FinancialImpact      int64                  `json:"financial_impact"`
	SeverityDistribution []NamedCount           `json:"severity_distribution"`
	Standards            []NamedCount           `json:"standards"`
	Radar                []RadarPoint           `json:"radar"`
	Issues               []string               `json:"issues"`
	Recommendations      []string               `json:"recommendations"`
	Controls             []model.PQCControl     `json:"controls"`
	Certificate          *model.CertificateInfo `json:"certificate,omitempty"`
}

// Quantum builds the overview from the quantumSecurity module. It returns nil
// when no host carries quantum exposure data.
func Quantum(mod model.ModuleResult) *QuantumOverview {
	host, entry, ok := QuantumMainEntry(mod)
	if !ok {
		return nil
	}
	exp := entry.QuantumExposure

	ov := &QuantumOverview{
		Domain:          host,
		Vulnerable:      exp.IsQuantumVulnerable,
		SeverityScore:   exp.SeverityScore,
		FinancialImpact: FinancialImpact(exp.SeverityScore),
		Issues:          nonNil(exp.Issues),
		Recommendations: nonNil(exp.Recommendations),
		Controls:        exp.PQCControls,
		Certificate:     entry.CertificateInfo,
	}
	if ov.Controls == nil {
		ov.Controls = []model.PQCControl{}
	}

	bySeverity := make(map[model.Severity]int)
	byStandard := make(map[string]int)
	for _, c := range exp.PQCControls {
		if c.Severity != "" {
			bySeverity[c.Severity]++
		}
		switch c.PQCStandard {
		case "", "N/A", "None":
		default:
			byStandard[c.PQCStandard]++
		}
	}

	ov.SeverityDistribution = []NamedCount{}
	for _, sev := range model.Severities() {
		if n := bySeverity[sev]; n > 0 {
			ov.SeverityDistribution = append(ov.SeverityDistribution, NamedCount{Name: string(sev), Value: n})
		}
	}

	ov.Standards = make([]NamedCount, 0, len(byStandard))
	for name, n := range byStandard {
		ov.Standards = append(ov.Standards, NamedCount{Name: name, Value: n})
	}
	sort.Slice(ov.Standards, func(i, j int) bool { return ov.Standards[i].Name < ov.Standards[j].Name })

	ov.Radar = riskRadar(exp, entry.CertificateInfo)
	return ov
}

// FinancialImpact scales the base breach impact by severityScore/10.
func FinancialImpact(severityScore float64) int64 {
	return int64(math.Round(severityScore / 10 * baseBreachImpact))
}

func riskRadar(exp *model.QuantumExposure, cert *model.CertificateInfo) []RadarPoint {
	if cert == nil {
		cert = &model.CertificateInfo{}
	}
	pick := func(cond bool, yes, no float64) float64 {
		if cond {
			return yes
		}
		return no
	}
	return []RadarPoint{
		{Subject: "PKI Risk", Value: exp.SeverityScore, FullMark: 10},
		{Subject: "Key Exchange", Value: pick(cert.KeyType == "ECC", 8.5, 6.5), FullMark: 10},
		{Subject: "Hash Security", Value: pick(cert.HashAlgorithm == "Unknown", 7.5, 5.5), FullMark: 10},
		{Subject: "Cipher Strength", Value: pick(cert.TLSProtocol == "TLSv1.3", 6.5, 8.5), FullMark: 10},
		{Subject: "Protocol Security", Value: pick(exp.IsQuantumVulnerable, 7.0, 4.0), FullMark: 10},
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
