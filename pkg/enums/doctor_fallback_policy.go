package enums

// DoctorFallbackPolicy decides what a settlement does when its doctor
// cannot be resolved.
type DoctorFallbackPolicy string

const (
	// DoctorFallbackPolicyHolding parks the doctor share on the holding
	// account for manual payout.
	DoctorFallbackPolicyHolding DoctorFallbackPolicy = "holding"
	DoctorFallbackPolicyReject  DoctorFallbackPolicy = "reject"
)

var doctorFallbackPolicies = set[DoctorFallbackPolicy]{DoctorFallbackPolicyHolding, DoctorFallbackPolicyReject}

func (v DoctorFallbackPolicy) String() string { return string(v) }

func (v DoctorFallbackPolicy) IsValid() bool { return doctorFallbackPolicies.has(v) }

func ParseDoctorFallbackPolicy(value string) (DoctorFallbackPolicy, error) {
	return doctorFallbackPolicies.parseFold("doctor fallback policy", value)
}
