package enums

// AccountKind selects which wallet family an account belongs to.
type AccountKind string

const (
	AccountKindPatient AccountKind = "patient"
	AccountKindDoctor  AccountKind = "doctor"
	AccountKindAdmin   AccountKind = "admin"
)

var accountKinds = set[AccountKind]{AccountKindPatient, AccountKindDoctor, AccountKindAdmin}

func (v AccountKind) String() string { return string(v) }

func (v AccountKind) IsValid() bool { return accountKinds.has(v) }

func ParseAccountKind(value string) (AccountKind, error) {
	return accountKinds.parseFold("account kind", value)
}

// PartyType is the label written on transaction records for this family.
// Anything unknown is the platform itself.
func (v AccountKind) PartyType() PartyType {
	switch v {
	case AccountKindPatient:
		return PartyTypePatient
	case AccountKindDoctor:
		return PartyTypeDoctor
	case AccountKindAdmin:
		return PartyTypeAdmin
	default:
		return PartyTypeSystem
	}
}
