// Package results holds pure, read-only views over a normalized ScanResult.
// Nothing in here mutates its input or performs I/O.
package results

import (
	"strings"
	"time"

	"github.com/raysh454/secboard/internal/model"
)

// Info is the "last scan" metadata shown next to every module page.
type Info struct {
	Domain string    `json:"domain"`
	Time   time.Time `json:"time"`
}

// ModuleData returns the module's per-host results, or nil when there is no
// result or the module is absent. The spf/dkim/dmarc aliases are accepted.
func ModuleData(r *model.ScanResult, name string) model.ModuleResult {
	if r == nil || r.GroupedResults == nil {
		return nil
	}
	mod, ok := r.GroupedResults[model.CanonicalModule(name)]
	if !ok {
		return nil
	}
	return mod
}

// HasModuleErrors reports whether a module signals a problem. For quantum
// security that means the main domain is quantum-vulnerable; for every other
// module it means at least one control could not be evaluated. Missing data
// is not a problem.
func HasModuleErrors(r *model.ScanResult, name string) bool {
	mod := ModuleData(r, name)
	if mod == nil {
		return false
	}

	if model.CanonicalModule(name) == model.ModuleQuantum {
		_, entry, ok := QuantumMainEntry(mod)
		if !ok {
			return false
		}
		return entry.QuantumExposure.IsQuantumVulnerable
	}

	for _, control := range mod {
		if control.IsError() {
			return true
		}
	}
	return false
}

// LastScanInfo returns nil until a scan result with a domain and a scan time exists.
func LastScanInfo(r *model.ScanResult, lastScanTime time.Time) *Info {
	if r == nil || r.Domain == "" || lastScanTime.IsZero() {
		return nil
	}
	return &Info{Domain: r.Domain, Time: lastScanTime}
}

// MainDomainEntry returns the first entry (in display order) whose key is
// neither a wildcard nor a www. host.
func MainDomainEntry(mod model.ModuleResult) (string, model.ControlResult, bool) {
	for _, k := range mod.Keys() {
		if k == model.QuantumMainKey || strings.HasPrefix(k, "*") || strings.HasPrefix(k, "www.") {
			continue
		}
		return k, mod[k], true
	}
	return "", model.ControlResult{}, false
}

// QuantumMainEntry returns the first non-error entry carrying quantum exposure
// data, skipping the convenience key so the real host name is reported.
// Unlike the convenience key, which always names the first non-wildcard host,
// a wildcard entry qualifies here: it may be the only host with exposure data.
func QuantumMainEntry(mod model.ModuleResult) (string, model.ControlResult, bool) {
	for _, k := range mod.Keys() {
		if k == model.QuantumMainKey {
			continue
		}
		c := mod[k]
		if c.IsError() || c.QuantumExposure == nil {
			continue
		}
		return k, c, true
	}
	// A result normalized from a report that only had the convenience key.
	if c, ok := mod[model.QuantumMainKey]; ok && !c.IsError() && c.QuantumExposure != nil {
		return model.QuantumMainKey, c, true
	}
	return "", model.ControlResult{}, false
}
