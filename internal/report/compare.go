package report

import (
	"fmt"

	"github.com/samber/lo"

	"cudadoctor/internal/reconcile"
	"cudadoctor/internal/snapshot"
)

var sectionTitles = map[reconcile.Section]string{
	reconcile.SectionSystem:     "System",
	reconcile.SectionCUDA:       "CUDA",
	reconcile.SectionFrameworks: "Frameworks",
}

// Comparison renders a reconciliation of this machine against an imported
// snapshot.
func (r *Reporter) Comparison(remote snapshot.Snapshot, entries []reconcile.Entry) {
	r.title("Environment comparison")

	groups := lo.GroupBy(entries, func(e reconcile.Entry) reconcile.Section { return e.Section })
	for _, section := range []reconcile.Section{reconcile.SectionSystem, reconcile.SectionCUDA, reconcile.SectionFrameworks} {
		if len(groups[section]) == 0 {
			continue
		}
		r.section(sectionTitles[section])
		for _, e := range groups[section] {
			r.entry(e)
		}
		r.printf("\n")
	}

	summary := reconcile.Summary(entries)
	r.printf("%s\n", r.style.label.Render(fmt.Sprintf("%d match, %d differ, %d only here, %d only in import, %d in neither",
		summary[reconcile.Match], summary[reconcile.Mismatch], summary[reconcile.LocalOnly],
		summary[reconcile.RemoteOnly], summary[reconcile.BothAbsent])))

	r.printf("\n")
	r.section("Imported snapshot")
	r.field("Exported", remote.Timestamp.UTC().Format("2006-01-02 15:04:05 UTC"))
	r.field("Hostname", remote.Hostname)
}

func (r *Reporter) entry(e reconcile.Entry) {
	local, remote := e.Local.String(), e.Remote.String()
	switch e.Outcome {
	case reconcile.Match:
		r.printf("  %s %s: %s (matches)\n", r.style.ok.Render(markOK), e.Label, r.style.value.Render(local))
	case reconcile.Mismatch:
		r.printf("  %s %s: %s here vs %s imported\n", r.style.warn.Render(markWarn), e.Label,
			r.style.value.Render(local), r.style.value.Render(remote))
	case reconcile.LocalOnly:
		r.printf("  %s %s: %s (not in import)\n", r.style.hint.Render("+"), e.Label, r.style.value.Render(local))
	case reconcile.RemoteOnly:
		r.printf("  %s %s: %s (missing locally)\n", r.style.warn.Render("-"), e.Label, r.style.value.Render(remote))
	default:
		r.printf("  %s %s: not available in either\n", r.style.missing.Render(markMissing), e.Label)
	}
}
