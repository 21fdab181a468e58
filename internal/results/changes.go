package results

import (
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/raysh454/secboard/internal/model"
)

// Edit is one span of a record diff.
type Edit struct {
	Op   string `json:"op"` // "equal" | "insert" | "delete"
	Text string `json:"text"`
}

// RecordChange describes an email-authentication DNS record that differs
// between two scans of the same domain.
type RecordChange struct {
	Module   string `json:"module"`
	Host     string `json:"host"`
	Previous string `json:"previous"`
	Current  string `json:"current"`
	Edits    []Edit `json:"edits"`
}

var rawRecordOf = map[string]func(model.ControlResult) string{
	model.ModuleSPF:   func(c model.ControlResult) string { return c.RawSPFRecord },
	model.ModuleDKIM:  func(c model.ControlResult) string { return c.RawDKIMRecord },
	model.ModuleDMARC: func(c model.ControlResult) string { return c.RawDMARCRecord },
}

// RecordChanges compares the raw SPF, DKIM and DMARC records of the main
// domain between prev and cur. Results for different domains are not compared.
func RecordChanges(prev, cur *model.ScanResult) []RecordChange {
	if prev == nil || cur == nil || prev.Domain != cur.Domain {
		return nil
	}

	dmp := diffmatchpatch.New()
	var out []RecordChange
	for _, module := range []string{model.ModuleSPF, model.ModuleDKIM, model.ModuleDMARC} {
		host, curEntry, ok := MainDomainEntry(ModuleData(cur, module))
		if !ok {
			continue
		}
		prevEntry, ok := ModuleData(prev, module)[host]
		if !ok {
			continue
		}
		record := rawRecordOf[module]
		before, after := record(prevEntry), record(curEntry)
		if before == after {
			continue
		}

		diffs := dmp.DiffMain(before, after, false)
		diffs = dmp.DiffCleanupSemantic(diffs)
		change := RecordChange{
			Module:   module,
			Host:     host,
			Previous: before,
			Current:  after,
			Edits:    make([]Edit, 0, len(diffs)),
		}
		for _, d := range diffs {
			change.Edits = append(change.Edits, Edit{Op: opName(d.Type), Text: d.Text})
		}
		out = append(out, change)
	}
	return out
}

func opName(op diffmatchpatch.Operation) string {
	switch op {
	case diffmatchpatch.DiffInsert:
		return "insert"
	case diffmatchpatch.DiffDelete:
		return "delete"
	default:
		return "equal"
	}
}
