package enums

// PartyType names the sender or receiver side of a transaction record.
type PartyType string

const (
	PartyTypePatient PartyType = "patient"
	PartyTypeDoctor  PartyType = "doctor"
	PartyTypeAdmin   PartyType = "admin"
	PartyTypeSystem  PartyType = "system"
)

var partyTypes = set[PartyType]{PartyTypePatient, PartyTypeDoctor, PartyTypeAdmin, PartyTypeSystem}

func (v PartyType) String() string { return string(v) }

func (v PartyType) IsValid() bool { return partyTypes.has(v) }

func ParsePartyType(value string) (PartyType, error) {
	return partyTypes.parse("party type", value)
}
