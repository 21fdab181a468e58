package demoserver

import (
	"encoding/json"
	"fmt"
)

type finding struct {
	ControlID        string `json:"controlId"`
	ControlName      string `json:"controlName"`
	Severity         string `json:"severity"`
	Observation      string `json:"observation"`
	PotentialAttacks string `json:"potentialAttacks,omitempty"`
	Recommendation   string `json:"recommendation,omitempty"`
}

func control(id, name, severity, observation, recommendation string) finding {
	return finding{
		ControlID:      id,
		ControlName:    name,
		Severity:       severity,
		Observation:    observation,
		Recommendation: recommendation,
	}
}

func (f finding) attacks(s string) finding {
	f.PotentialAttacks = s
	return f
}

func pqcControl(id, name, severity, standard, status string) map[string]string {
	return map[string]string{
		"controlId":   id,
		"controlName": name,
		"severity":    severity,
		"pqcStandard": standard,
		"status":      status,
	}
}

type hostEntry map[string]any

func findings(f ...finding) hostEntry {
	if f == nil {
		f = []finding{}
	}
	return hostEntry{"findings": f}
}

func failed(msg string) hostEntry {
	return hostEntry{"error": msg}
}

// spfRecords rotates per scan revision so consecutive scans differ.
var spfRecords = []string{
	"v=spf1 include:_spf.%s ~all",
	"v=spf1 include:_spf.%s -all",
}

// Report returns the canned report of the revision-th scan of domain. Every
// dashboard module is present; SPF, DKIM and DMARC sit at the top level as
// older scanner versions emit them.
func Report(domain string, revision int) []byte {
	wildcard := "*." + domain
	www := "www." + domain

	spf := spfRecords[0]
	if revision%2 == 0 {
		spf = spfRecords[1]
	}

	grouped := map[string]map[string]hostEntry{
		"emailSecurity": {
			domain: findings(control("EML-01", "MTA-STS policy", "Medium",
				"No MTA-STS policy is published.",
				"Publish an MTA-STS policy in enforce mode.")),
		},
		"apiSecurity": {
			domain: findings(),
			"api." + domain: findings(control("API-03", "CORS configuration", "High",
				"Access-Control-Allow-Origin reflects arbitrary origins.",
				"Restrict allowed origins to known front ends.").
				attacks("Cross-origin data theft")),
		},
		"applicationSecurity": {
			domain: findings(
				control("APP-01", "Content-Security-Policy", "Medium",
					"No Content-Security-Policy header.", "Add a restrictive CSP."),
				control("APP-02", "HSTS", "Low",
					"HSTS max-age below one year.", "Raise max-age to 31536000."),
			),
			www: findings(),
		},
		"cloudSecurity": {
			domain: failed("cloud provider fingerprinting timed out"),
		},
		"dnsSecurity": {
			domain: findings(control("DNS-01", "DNSSEC", "Medium",
				"Zone is not signed.",
				"Enable DNSSEC at the registrar and DNS host.")),
		},
		"dataSecurity": {
			domain: findings(),
		},
		"networkSecurity": {
			domain: findings(control("NET-04", "Exposed management ports", "Critical",
				"SSH (22) reachable from the internet.",
				"Restrict SSH to a VPN or bastion host.").
				attacks("Credential brute force")),
		},
		"thirdPartyRiskMonitoring": {
			domain: findings(control("TPR-02", "Outdated JavaScript library", "Low",
				"jQuery 1.12.4 loaded from a public CDN.", "")),
		},
		"quantumSecurity": {
			wildcard: failed("TLS handshake timeout"),
			domain: {
				"findings": []finding{},
				"quantumExposure": map[string]any{
					"isQuantumVulnerable": true,
					"severityScore":       7.25,
					"issues": []string{
						"RSA-2048 certificate key is breakable by a large quantum computer.",
						"No hybrid post-quantum key exchange offered.",
					},
					"recommendations": []string{
						"Plan migration to ML-KEM hybrid key exchange.",
						"Inventory certificates for ML-DSA readiness.",
					},
					"pqcControls": []map[string]string{
						pqcControl("PQC-01", "Hybrid key exchange", "High", "FIPS 203", "Not implemented"),
						pqcControl("PQC-02", "PQC signatures", "Medium", "FIPS 204", "Not implemented"),
						pqcControl("PQC-03", "Crypto inventory", "Low", "N/A", "Partial"),
					},
				},
				"certificateInfo": map[string]any{
					"keyType":       "RSA",
					"keySize":       2048,
					"hashAlgorithm": "SHA-256",
					"tlsProtocol":   "TLSv1.2",
				},
			},
		},
	}

	report := map[string]any{
		"groupedResults": grouped,
		"spfSecurity": map[string]hostEntry{
			domain: {
				"findings": []finding{control("SPF-02", "SPF includes", "Low",
					"SPF record authorizes a third-party sender.", "")},
				"rawSPFRecord": fmt.Sprintf(spf, domain),
			},
		},
		"dkimSecurity": map[string]hostEntry{
			domain: {
				"findings":      []finding{},
				"rawDKIMRecord": "v=DKIM1; k=rsa; p=MIIBIjANBgkqhkiG9w0BAQEFAAOCAQ8AMIIBCgKCAQEA",
			},
		},
		"dmarcSecurity": map[string]hostEntry{
			domain: {
				"findings": []finding{control("DMARC-01", "DMARC policy", "High",
					"DMARC policy is p=none.",
					"Move to p=quarantine after monitoring reports.")},
				"rawDMARCRecord": "v=DMARC1; p=none; rua=mailto:dmarc@" + domain,
			},
		},
	}

	b, err := json.Marshal(report)
	if err != nil {
		panic(err) // static shape
	}
	return b
}
