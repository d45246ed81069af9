package letter

import "fmt"

// ComplianceKind identifies one of the five regulatory attestation groups.
type ComplianceKind int

const (
	Hospitalization ComplianceKind = iota
	Prescription
	SickLeave
	HomeCare
	MedicalDevices
)

// ComplianceKinds lists the groups in the order they are printed.
var ComplianceKinds = []ComplianceKind{Hospitalization, Prescription, SickLeave, HomeCare, MedicalDevices}

func (k ComplianceKind) String() string {
	switch k {
	case Hospitalization:
		return "hospitalization"
	case Prescription:
		return "prescription"
	case SickLeave:
		return "sick_leave"
	case HomeCare:
		return "home_care"
	case MedicalDevices:
		return "medical_devices"
	}
	return "unknown"
}

// ComplianceState is the single selected option of a group.
type ComplianceState int

const (
	// NotNeeded means "not issued because it was not necessary". It is the
	// derived state whenever nothing was issued.
	NotNeeded ComplianceState = iota
	Issued
	// NotIssued means "not issued" without the unnecessary qualifier. Only
	// the prescription and sick-leave forms carry this option.
	NotIssued
)

func (s ComplianceState) String() string {
	switch s {
	case Issued:
		return "issued"
	case NotIssued:
		return "not_issued"
	default:
		return "not_needed"
	}
}

// MarshalText makes states readable in the JSON preview.
func (s ComplianceState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses the names written by MarshalText.
func (s *ComplianceState) UnmarshalText(text []byte) error {
	switch string(text) {
	case "issued":
		*s = Issued
	case "not_needed":
		*s = NotNeeded
	case "not_issued":
		*s = NotIssued
	default:
		return fmt.Errorf("unknown compliance state %q", text)
	}
	return nil
}

// Options returns the choices printed for the group, in form order.
func (k ComplianceKind) Options() []ComplianceState {
	switch k {
	case Prescription, SickLeave:
		return []ComplianceState{Issued, NotNeeded, NotIssued}
	default:
		return []ComplianceState{Issued, NotNeeded}
	}
}

// Supports reports whether s is one of the group's printed options.
func (k ComplianceKind) Supports(s ComplianceState) bool {
	for _, o := range k.Options() {
		if o == s {
			return true
		}
	}
	return false
}

// ComplianceGroup is a resolved attestation. Reference carries the
// hospitalization term or the prescription/sick-leave series and is only
// meaningful when State is Issued.
type ComplianceGroup struct {
	Kind      ComplianceKind  `json:"-"`
	State     ComplianceState `json:"state"`
	Reference string          `json:"reference,omitempty"`
}

// Flags expands the state into the form's three booleans. Exactly one is
// true.
func (g ComplianceGroup) Flags() (issued, notNeeded, notIssued bool) {
	switch g.State {
	case Issued:
		return true, false, false
	case NotIssued:
		return false, false, true
	default:
		return false, true, false
	}
}

// ComplianceFlags holds the five groups of the letter.
type ComplianceFlags struct {
	Hospitalization ComplianceGroup `json:"hospitalization"`
	Prescription    ComplianceGroup `json:"prescription"`
	SickLeave       ComplianceGroup `json:"sick_leave"`
	HomeCare        ComplianceGroup `json:"home_care"`
	MedicalDevices  ComplianceGroup `json:"medical_devices"`
}

// Groups returns the five groups in print order.
func (f ComplianceFlags) Groups() []ComplianceGroup {
	return []ComplianceGroup{f.Hospitalization, f.Prescription, f.SickLeave, f.HomeCare, f.MedicalDevices}
}

// Set stores g in the slot matching its kind.
func (f *ComplianceFlags) Set(g ComplianceGroup) {
	switch g.Kind {
	case Hospitalization:
		f.Hospitalization = g
	case Prescription:
		f.Prescription = g
	case SickLeave:
		f.SickLeave = g
	case HomeCare:
		f.HomeCare = g
	case MedicalDevices:
		f.MedicalDevices = g
	}
}

// NewComplianceFlags returns flags with every group in its derived default
// state.
func NewComplianceFlags() ComplianceFlags {
	var f ComplianceFlags
	for _, k := range ComplianceKinds {
		f.Set(ComplianceGroup{Kind: k, State: NotNeeded})
	}
	return f
}
