package normalize

import (
	"regexp"
	"strings"

	"github.com/ehr/medletter/internal/letter"
)

// Issue is a data-quality finding produced while normalizing. Normalization
// never fails; callers decide how to report issues.
type Issue struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// DiagnosisResolution is the outcome of reconciling the diagnosis table with
// the legacy free-text fields.
type DiagnosisResolution struct {
	Principal       *letter.DiagnosisEntry
	PrincipalOrigin Origin
	Secondary       []letter.DiagnosisEntry
	SecondaryOrigin Origin
}

// legacy secondary entries are separated by ';' or newlines and split into
// code and name on a spaced hyphen or en dash.
var (
	legacyEntrySep = regexp.MustCompile(`[;\n]+`)
	legacyPairSep  = regexp.MustCompile(`\s+[-–]\s+`)
	icd10Code      = regexp.MustCompile(`^[A-Z][0-9]{2}(\.[0-9A-Z]{1,4})?$`)
)

type diagnosisPair struct {
	code, name, detail string
}

func (p diagnosisPair) populated() bool {
	return nonBlank(p.code) || nonBlank(p.name)
}

// Diagnoses resolves the principal and secondary diagnoses.
//
// The principal diagnosis is the first row flagged principal whose code or
// name is set; failing that, the legacy name/code pair. Either pair is taken
// whole. When neither is populated there is no principal entry. Any further
// rows flagged principal are demoted to secondary and reported.
//
// Secondary diagnoses come from the non-principal rows when at least one is
// populated, otherwise from parsing legacySecondary.
func Diagnoses(rows []letter.DiagnosisEntry, legacyName, legacyCode, legacySecondary string) (DiagnosisResolution, []Issue) {
	var (
		res       DiagnosisResolution
		issues    []Issue
		newPair   diagnosisPair
		secondary []letter.DiagnosisEntry
	)

	principalSeen := false
	for _, row := range rows {
		pair := diagnosisPair{strings.TrimSpace(row.Code), strings.TrimSpace(row.Name), strings.TrimSpace(row.Detail)}
		if !pair.populated() {
			continue
		}
		if row.IsPrincipal && !principalSeen {
			newPair = pair
			principalSeen = true
			continue
		}
		if row.IsPrincipal {
			issues = append(issues, Issue{
				Field:  "diagnosis.principal",
				Reason: "more than one principal diagnosis; demoted " + label(pair) + " to secondary",
			})
		}
		secondary = append(secondary, letter.DiagnosisEntry{Code: pair.code, Name: pair.name, Detail: pair.detail})
	}

	legacyPair := diagnosisPair{code: strings.TrimSpace(legacyCode), name: strings.TrimSpace(legacyName)}
	principal := Resolve(newPair, legacyPair, diagnosisPair.populated)
	if p, ok := principal.Get(); ok {
		res.Principal = &letter.DiagnosisEntry{Code: p.code, Name: p.name, Detail: p.detail, IsPrincipal: true}
		res.PrincipalOrigin = principal.Origin()
	}

	sec := Slice(secondary, ParseLegacySecondary(legacySecondary))
	res.Secondary = sec.Value()
	res.SecondaryOrigin = sec.Origin()
	if res.Secondary == nil {
		res.Secondary = []letter.DiagnosisEntry{}
	}

	return res, issues
}

// ParseLegacySecondary parses the legacy free-text list of secondary
// diagnoses, e.g. "E11.9 - Diabet zaharat tip 2; I10 - HTA".
func ParseLegacySecondary(s string) []letter.DiagnosisEntry {
	if !nonBlank(s) {
		return nil
	}
	var out []letter.DiagnosisEntry
	for _, part := range legacyEntrySep.Split(s, -1) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		var entry letter.DiagnosisEntry
		if kv := legacyPairSep.Split(part, 2); len(kv) == 2 {
			entry.Code = strings.TrimSpace(kv[0])
			entry.Name = strings.TrimSpace(kv[1])
		} else if icd10Code.MatchString(part) {
			entry.Code = part
		} else {
			entry.Name = part
		}
		if entry.Code == "" && entry.Name == "" {
			continue
		}
		out = append(out, entry)
	}
	return out
}

func label(p diagnosisPair) string {
	switch {
	case p.code != "" && p.name != "":
		return p.code + " " + p.name
	case p.code != "":
		return p.code
	}
	return p.name
}
