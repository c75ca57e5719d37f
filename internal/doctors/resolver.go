package doctors

import (
	"context"
	"regexp"
	"strings"

	"gorm.io/gorm"

	"github.com/healthoasis/wallet-backend/pkg/enums"
	pkgerrors "github.com/healthoasis/wallet-backend/pkg/errors"
	"github.com/healthoasis/wallet-backend/pkg/logger"
)

// Resolution describes how a settlement payee was determined.
type Resolution string

const (
	ResolutionExplicit Resolution = "explicit"
	ResolutionByID     Resolution = "id"
	ResolutionByName   Resolution = "name"
	ResolutionFallback Resolution = "fallback"
)

var titlePrefix = regexp.MustCompile(`(?i)^dr\.?\s+`)

// Ref is what a caller knows about the doctor being paid.
type Ref struct {
	ID   string
	Name string
}

// Resolved is the payee account key plus the evidence for it.
type Resolved struct {
	AccountKey string
	Name       string
	Resolution Resolution
}

// Resolver maps a Ref to a doctor wallet key.
type Resolver struct {
	repo           Repository
	policy         enums.DoctorFallbackPolicy
	holdingAccount string
	logg           *logger.Logger
}

type ResolverParams struct {
	Repository     Repository
	Policy         enums.DoctorFallbackPolicy
	HoldingAccount string
	Logger         *logger.Logger
}

func NewResolver(params ResolverParams) (*Resolver, error) {
	if params.Repository == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "doctor repository required")
	}
	policy := params.Policy
	if policy == "" {
		policy = enums.DoctorFallbackPolicyHolding
	}
	if !policy.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "invalid doctor fallback policy "+string(policy))
	}
	holding := strings.TrimSpace(params.HoldingAccount)
	if policy == enums.DoctorFallbackPolicyHolding && holding == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "holding account required for holding fallback policy")
	}
	return &Resolver{
		repo:           params.Repository,
		policy:         policy,
		holdingAccount: holding,
		logg:           params.Logger,
	}, nil
}

// WithTx returns a resolver reading through tx.
func (r *Resolver) WithTx(tx *gorm.DB) *Resolver {
	clone := *r
	clone.repo = r.repo.WithTx(tx)
	return &clone
}

// Resolve maps ref to a wallet key. An explicit id always wins: a directory
// hit supplies the display name, and an unknown id is still trusted so its
// wallet can be created lazily. A name-only ref must match exactly one
// directory entry case-insensitively, with any "Dr." title stripped; on a
// miss the fallback policy picks the holding account or rejects.
func (r *Resolver) Resolve(ctx context.Context, ref Ref) (*Resolved, error) {
	id := strings.TrimSpace(ref.ID)
	name := strings.TrimSpace(ref.Name)

	if id != "" {
		doctor, err := r.repo.FindByID(ctx, id)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup doctor by id")
		}
		if doctor != nil {
			return &Resolved{AccountKey: doctor.ID, Name: doctor.Name, Resolution: ResolutionByID}, nil
		}
		return &Resolved{AccountKey: id, Name: name, Resolution: ResolutionExplicit}, nil
	}

	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "doctor id or name is required")
	}

	resolved, err := r.byName(ctx, name)
	if err != nil {
		return nil, err
	}
	if resolved != nil {
		return resolved, nil
	}
	return r.fallback(ctx, name)
}

func (r *Resolver) byName(ctx context.Context, name string) (*Resolved, error) {
	candidates := []string{name}
	if stripped := strings.TrimSpace(titlePrefix.ReplaceAllString(name, "")); stripped != "" && stripped != name {
		candidates = append(candidates, stripped)
	}
	for _, candidate := range candidates {
		matches, err := r.repo.FindByName(ctx, candidate)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup doctor by name")
		}
		if len(matches) == 1 {
			return &Resolved{AccountKey: matches[0].ID, Name: matches[0].Name, Resolution: ResolutionByName}, nil
		}
		if len(matches) > 1 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "doctor name is ambiguous").
				WithDetails(map[string]any{"name": name, "matches": len(matches)})
		}
	}
	return nil, nil
}

func (r *Resolver) fallback(ctx context.Context, name string) (*Resolved, error) {
	if r.policy == enums.DoctorFallbackPolicyReject {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "doctor could not be resolved").
			WithDetails(map[string]any{"doctorName": name})
	}
	if r.logg != nil {
		warnCtx := r.logg.WithFields(ctx, map[string]any{
			"doctor_name":     name,
			"holding_account": r.holdingAccount,
		})
		r.logg.Warn(warnCtx, "doctor not found, crediting holding account")
	}
	return &Resolved{AccountKey: r.holdingAccount, Name: name, Resolution: ResolutionFallback}, nil
}

// Names returns id -> display name for the given doctor ids.
func (r *Resolver) Names(ctx context.Context, ids []string) (map[string]string, error) {
	doctors, err := r.repo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup doctor names")
	}
	names := make(map[string]string, len(doctors))
	for _, d := range doctors {
		names[d.ID] = d.Name
	}
	return names, nil
}
