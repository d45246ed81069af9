package normalize

import (
	"strings"

	"github.com/ehr/medletter/internal/letter"
)

// ComplianceInput is the raw state of one attestation group.
type ComplianceInput struct {
	Issued bool
	// NotIssued asserts "not issued" without the unnecessary qualifier.
	NotIssued bool
	// NotNeeded is the legacy explicit "not issued because unnecessary"
	// flag. It is only compared against the derived value.
	NotNeeded *bool
	Reference string
}

// Compliance derives the group state. "Not needed" is the negation of
// Issued unless NotIssued is asserted. Conflicting inputs are reported and
// clamped:
//   - Issued and NotIssued both set: Issued wins.
//   - NotIssued on a group without that option: NotNeeded.
//   - an explicit legacy NotNeeded contradicting the derived state is ignored.
func Compliance(kind letter.ComplianceKind, in ComplianceInput) (letter.ComplianceGroup, []Issue) {
	var issues []Issue
	field := "compliance." + kind.String()

	g := letter.ComplianceGroup{Kind: kind, State: letter.NotNeeded}
	switch {
	case in.Issued && in.NotIssued:
		issues = append(issues, Issue{Field: field, Reason: "issued and not-issued both asserted; keeping issued"})
		g.State = letter.Issued
	case in.Issued:
		g.State = letter.Issued
	case in.NotIssued && kind.Supports(letter.NotIssued):
		g.State = letter.NotIssued
	case in.NotIssued:
		issues = append(issues, Issue{Field: field, Reason: "not-issued option does not exist for this group; using not-needed"})
	}

	if in.NotNeeded != nil && *in.NotNeeded != (g.State == letter.NotNeeded) {
		issues = append(issues, Issue{
			Field:  field,
			Reason: "explicit not-needed flag contradicts derived state " + g.State.String() + "; ignored",
		})
	}

	if g.State == letter.Issued {
		g.Reference = strings.TrimSpace(in.Reference)
	}
	return g, issues
}
