package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Normalize decodes a raw scanner report and produces the canonical ScanResult
// for (domain, scanTime). Normalizing the JSON of an already-normalized result
// with the same pair yields byte-identical output.
func Normalize(raw []byte, domain string, scanTime time.Time) (*ScanResult, error) {
	r := &ScanResult{}
	if len(strings.TrimSpace(string(raw))) > 0 && strings.TrimSpace(string(raw)) != "null" {
		if err := json.Unmarshal(raw, r); err != nil {
			return nil, fmt.Errorf("normalize report: %w", err)
		}
	}
	r.Domain = domain
	r.ScanTime = scanTime.UTC()
	if err := r.Normalize(); err != nil {
		return nil, err
	}
	return r, nil
}

// Normalize brings r into canonical shape in place:
//   - groupedResults is never nil
//   - top-level spf/dkim/dmarc modules are folded into groupedResults
//   - quantumSecurity exists and carries the QuantumMainKey convenience entry
func (r *ScanResult) Normalize() error {
	if r.GroupedResults == nil {
		r.GroupedResults = map[string]ModuleResult{}
	}

	for _, name := range emailProtocolModules {
		raw, ok := r.Extra[name]
		if !ok {
			continue
		}
		delete(r.Extra, name)
		if _, grouped := r.GroupedResults[name]; grouped {
			continue
		}
		var mod ModuleResult
		if err := json.Unmarshal(raw, &mod); err != nil {
			return fmt.Errorf("normalize %s: %w", name, err)
		}
		if mod != nil {
			r.GroupedResults[name] = mod
		}
	}
	if len(r.Extra) == 0 {
		r.Extra = nil
	}

	quantum := r.GroupedResults[ModuleQuantum]
	if quantum == nil {
		quantum = ModuleResult{}
		r.GroupedResults[ModuleQuantum] = quantum
	}
	if key, ok := mainQuantumKey(quantum); ok {
		quantum[QuantumMainKey] = quantum[key]
	} else {
		delete(quantum, QuantumMainKey)
	}
	return nil
}

// mainQuantumKey picks the main domain entry: the first key in display order
// that is not wildcard-prefixed, not an error and not the convenience key.
// The entry need not carry quantum exposure data.
func mainQuantumKey(mod ModuleResult) (string, bool) {
	for _, k := range mod.Keys() {
		if k == QuantumMainKey || strings.HasPrefix(k, "*") {
			continue
		}
		if mod[k].IsError() {
			continue
		}
		return k, true
	}
	return "", false
}
