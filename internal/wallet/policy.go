package wallet

import (
	"fmt"
	"strings"

	"github.com/healthoasis/wallet-backend/pkg/enums"
	pkgerrors "github.com/healthoasis/wallet-backend/pkg/errors"
)

// kindPolicy normalises and validates the key of one account family.
type kindPolicy interface {
	normalize(key string) (string, error)
}

type patientPolicy struct{}

func (patientPolicy) normalize(key string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(key))
	if email == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "patient email is required")
	}
	if !strings.Contains(email, "@") {
		return "", pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid patient email %q", key))
	}
	return email, nil
}

type doctorPolicy struct{}

func (doctorPolicy) normalize(key string) (string, error) {
	id := strings.TrimSpace(key)
	if id == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "doctor id is required")
	}
	return id, nil
}

// adminPolicy pins every admin lookup to the configured singleton key.
type adminPolicy struct {
	key string
}

func (p adminPolicy) normalize(string) (string, error) {
	return p.key, nil
}

func (s *Store) policyFor(kind enums.AccountKind) (kindPolicy, error) {
	switch kind {
	case enums.AccountKindPatient:
		return patientPolicy{}, nil
	case enums.AccountKindDoctor:
		return doctorPolicy{}, nil
	case enums.AccountKindAdmin:
		return adminPolicy{key: s.adminKey}, nil
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid account kind %q", kind))
	}
}

// AccountRef identifies an account by kind and (raw) key.
type AccountRef struct {
	Kind enums.AccountKind
	Key  string
}

func Patient(email string) AccountRef { return AccountRef{Kind: enums.AccountKindPatient, Key: email} }

func Doctor(id string) AccountRef { return AccountRef{Kind: enums.AccountKindDoctor, Key: id} }

// Admin references the singleton admin wallet; the key is filled in by the store.
func Admin() AccountRef { return AccountRef{Kind: enums.AccountKindAdmin} }

func (r AccountRef) String() string {
	return string(r.Kind) + ":" + r.Key
}
