package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"
)

// Module names as they appear under groupedResults.
const (
	ModuleEmail          = "emailSecurity"
	ModuleAPI            = "apiSecurity"
	ModuleApplication    = "applicationSecurity"
	ModuleCloud          = "cloudSecurity"
	ModuleDNS            = "dnsSecurity"
	ModuleData           = "dataSecurity"
	ModuleNetwork        = "networkSecurity"
	ModuleQuantum        = "quantumSecurity"
	ModuleThirdPartyRisk = "thirdPartyRiskMonitoring"
	ModuleSPF            = "spfSecurity"
	ModuleDKIM           = "dkimSecurity"
	ModuleDMARC          = "dmarcSecurity"
)

// QuantumMainKey is the convenience key under quantumSecurity that duplicates
// the main (non-wildcard, non-error) domain entry.
const QuantumMainKey = "0"

// Modules lists every module name the scanner is known to emit.
func Modules() []string {
	return []string{
		ModuleEmail, ModuleAPI, ModuleApplication, ModuleCloud, ModuleDNS,
		ModuleData, ModuleNetwork, ModuleQuantum, ModuleThirdPartyRisk,
		ModuleSPF, ModuleDKIM, ModuleDMARC,
	}
}

var moduleAliases = map[string]string{
	"spf":   ModuleSPF,
	"dkim":  ModuleDKIM,
	"dmarc": ModuleDMARC,
}

// CanonicalModule resolves short aliases (spf, dkim, dmarc) to their
// groupedResults key. Unknown names are returned unchanged.
func CanonicalModule(name string) string {
	if canon, ok := moduleAliases[name]; ok {
		return canon
	}
	return name
}

// emailProtocolModules may arrive at the top level of a report instead of
// under groupedResults.
var emailProtocolModules = []string{ModuleSPF, ModuleDKIM, ModuleDMARC}

// ScanResult is the normalized report for one completed scan.
type ScanResult struct {
	// Domain is the hostname the scan evaluated.
	Domain string `json:"domain"`

	// ScanTime is when the report was produced (or adopted).
	ScanTime time.Time `json:"scanTime"`

	// Timestamp is the remote "latest scan" timestamp when the result was
	// adopted from the latest endpoint rather than a fresh scan.
	Timestamp string `json:"timestamp,omitempty"`

	// GroupedResults maps module name to per-host control results. Never nil
	// once normalized.
	GroupedResults map[string]ModuleResult `json:"groupedResults"`

	// Extra keeps any other top-level report fields verbatim.
	Extra map[string]json.RawMessage `json:"-"`
}

// ModuleResult maps a sub-key (usually a hostname, possibly "*"-prefixed) to
// the control evaluated for it.
type ModuleResult map[string]ControlResult

// Keys returns the sub-keys in display order: integer-like keys first in
// numeric order, then the rest lexically. This puts QuantumMainKey first.
func (m ModuleResult) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		ni, iNum := indexKey(keys[i])
		nj, jNum := indexKey(keys[j])
		switch {
		case iNum && jNum:
			return ni < nj
		case iNum != jNum:
			return iNum
		default:
			return keys[i] < keys[j]
		}
	})
	return keys
}

func indexKey(k string) (uint64, bool) {
	if k == "" || (len(k) > 1 && k[0] == '0') {
		return 0, false
	}
	n, err := strconv.ParseUint(k, 10, 32)
	return n, err == nil
}

// ControlResult is either an error record (Error set) or a findings record.
// It is never both: decoding a payload that carries an error drops findings.
type ControlResult struct {
	Error string `json:"-"`

	Findings []Finding `json:"-"`

	RawSPFRecord    string           `json:"-"`
	RawDMARCRecord  string           `json:"-"`
	RawDKIMRecord   string           `json:"-"`
	QuantumExposure *QuantumExposure `json:"-"`
	CertificateInfo *CertificateInfo `json:"-"`

	// Extra holds module-specific fields this package does not model.
	Extra map[string]json.RawMessage `json:"-"`
}

// IsError reports whether the scanner failed to evaluate this control.
func (c ControlResult) IsError() bool {
	return c.Error != ""
}

// Finding is a single detected issue within a module.
type Finding struct {
	ControlID        string   `json:"controlId"`
	ControlName      string   `json:"controlName"`
	Severity         Severity `json:"severity"`
	Observation      string   `json:"observation"`
	PotentialAttacks string   `json:"potentialAttacks,omitempty"`
	Recommendation   string   `json:"recommendation,omitempty"`
}

func (f *Finding) UnmarshalJSON(data []byte) error {
	type plain Finding
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	if p.Severity == "" {
		p.Severity = SeverityUnknown
	}
	*f = Finding(p)
	return nil
}

// QuantumExposure describes post-quantum readiness of the main domain.
type QuantumExposure struct {
	IsQuantumVulnerable bool         `json:"isQuantumVulnerable"`
	SeverityScore       float64      `json:"severityScore"`
	Issues              []string     `json:"issues,omitempty"`
	Recommendations     []string     `json:"recommendations,omitempty"`
	PQCControls         []PQCControl `json:"pqcControls,omitempty"`
}

// PQCControl is one post-quantum cryptography control evaluation.
type PQCControl struct {
	ControlID   string   `json:"controlId"`
	ControlName string   `json:"controlName"`
	Severity    Severity `json:"severity"`
	PQCStandard string   `json:"pqcStandard,omitempty"`
	Status      string   `json:"status,omitempty"`
}

// CertificateInfo summarizes the TLS certificate observed for a host.
type CertificateInfo struct {
	KeyType       string `json:"keyType,omitempty"`
	KeySize       int    `json:"keySize,omitempty"`
	HashAlgorithm string `json:"hashAlgorithm,omitempty"`
	TLSProtocol   string `json:"tlsProtocol,omitempty"`
	Issuer        string `json:"issuer,omitempty"`
	ValidTo       string `json:"validTo,omitempty"`
}

const (
	fieldError           = "error"
	fieldFindings        = "findings"
	fieldRawSPF          = "rawSPFRecord"
	fieldRawDMARC        = "rawDMARCRecord"
	fieldRawDKIM         = "rawDKIMRecord"
	fieldQuantumExposure = "quantumExposure"
	fieldCertificateInfo = "certificateInfo"
)

func (c *ControlResult) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("control result: %w", err)
	}

	out := ControlResult{}
	if raw, ok := fields[fieldError]; ok {
		out.Error = decodeErrorField(raw)
		delete(fields, fieldError)
	}

	if out.Error != "" {
		for _, k := range []string{fieldFindings, fieldRawSPF, fieldRawDMARC, fieldRawDKIM, fieldQuantumExposure, fieldCertificateInfo} {
			delete(fields, k)
		}
	} else {
		if err := takeField(fields, fieldFindings, &out.Findings); err != nil {
			return err
		}
		if err := takeField(fields, fieldRawSPF, &out.RawSPFRecord); err != nil {
			return err
		}
		if err := takeField(fields, fieldRawDMARC, &out.RawDMARCRecord); err != nil {
			return err
		}
		if err := takeField(fields, fieldRawDKIM, &out.RawDKIMRecord); err != nil {
			return err
		}
		if err := takeField(fields, fieldQuantumExposure, &out.QuantumExposure); err != nil {
			return err
		}
		if err := takeField(fields, fieldCertificateInfo, &out.CertificateInfo); err != nil {
			return err
		}
	}

	if len(fields) > 0 {
		out.Extra = fields
	}
	*c = out
	return nil
}

func (c ControlResult) MarshalJSON() ([]byte, error) {
	fields := make(map[string]json.RawMessage, len(c.Extra)+4)
	for k, v := range c.Extra {
		fields[k] = v
	}

	if c.Error != "" {
		if err := putField(fields, fieldError, c.Error); err != nil {
			return nil, err
		}
		return json.Marshal(fields)
	}

	findings := c.Findings
	if findings == nil {
		findings = []Finding{}
	}
	if err := putField(fields, fieldFindings, findings); err != nil {
		return nil, err
	}
	if c.RawSPFRecord != "" {
		if err := putField(fields, fieldRawSPF, c.RawSPFRecord); err != nil {
			return nil, err
		}
	}
	if c.RawDMARCRecord != "" {
		if err := putField(fields, fieldRawDMARC, c.RawDMARCRecord); err != nil {
			return nil, err
		}
	}
	if c.RawDKIMRecord != "" {
		if err := putField(fields, fieldRawDKIM, c.RawDKIMRecord); err != nil {
			return nil, err
		}
	}
	if c.QuantumExposure != nil {
		if err := putField(fields, fieldQuantumExposure, c.QuantumExposure); err != nil {
			return nil, err
		}
	}
	if c.CertificateInfo != nil {
		if err := putField(fields, fieldCertificateInfo, c.CertificateInfo); err != nil {
			return nil, err
		}
	}
	return json.Marshal(fields)
}

const (
	fieldDomain         = "domain"
	fieldScanTime       = "scanTime"
	fieldTimestamp      = "timestamp"
	fieldGroupedResults = "groupedResults"
)

func (r *ScanResult) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("scan result: %w", err)
	}

	out := ScanResult{}
	if err := takeField(fields, fieldDomain, &out.Domain); err != nil {
		return err
	}
	if raw, ok := fields[fieldScanTime]; ok {
		// Reports from older scanner builds carry non-RFC3339 times; those are
		// replaced during normalization anyway.
		_ = json.Unmarshal(raw, &out.ScanTime)
		delete(fields, fieldScanTime)
	}
	if err := takeField(fields, fieldTimestamp, &out.Timestamp); err != nil {
		return err
	}
	if err := takeField(fields, fieldGroupedResults, &out.GroupedResults); err != nil {
		return err
	}
	if len(fields) > 0 {
		out.Extra = fields
	}
	*r = out
	return nil
}

func (r ScanResult) MarshalJSON() ([]byte, error) {
	fields := make(map[string]json.RawMessage, len(r.Extra)+4)
	for k, v := range r.Extra {
		fields[k] = v
	}
	if err := putField(fields, fieldDomain, r.Domain); err != nil {
		return nil, err
	}
	if err := putField(fields, fieldScanTime, r.ScanTime); err != nil {
		return nil, err
	}
	if r.Timestamp != "" {
		if err := putField(fields, fieldTimestamp, r.Timestamp); err != nil {
			return nil, err
		}
	}
	grouped := r.GroupedResults
	if grouped == nil {
		grouped = map[string]ModuleResult{}
	}
	if err := putField(fields, fieldGroupedResults, grouped); err != nil {
		return nil, err
	}
	return json.Marshal(fields)
}

// takeField decodes fields[key] into dst (if present and not null) and removes it.
func takeField(fields map[string]json.RawMessage, key string, dst any) error {
	raw, ok := fields[key]
	if !ok {
		return nil
	}
	delete(fields, key)
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func putField(fields map[string]json.RawMessage, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	fields[key] = b
	return nil
}

// decodeErrorField accepts the scanner's error as a string, or falls back to
// the raw JSON text for structured errors. null and "" mean "no error".
func decodeErrorField(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) || bytes.Equal(trimmed, []byte("false")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(trimmed, &s); err == nil {
		return s
	}
	return string(trimmed)
}
