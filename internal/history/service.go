package history

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/healthoasis/wallet-backend/internal/ledger"
	"github.com/healthoasis/wallet-backend/pkg/db/models"
	"github.com/healthoasis/wallet-backend/pkg/enums"
	pkgerrors "github.com/healthoasis/wallet-backend/pkg/errors"
	"github.com/healthoasis/wallet-backend/pkg/pagination"
)

// RecentLimit is the number of records shown next to a detailed balance.
const RecentLimit = 5

type doctorNamer interface {
	Names(ctx context.Context, ids []string) (map[string]string, error)
}

// QueryInput selects one party's history. StartDate and EndDate only
// filter when both are present; both bounds are inclusive.
type QueryInput struct {
	PartyType string
	PartyID   string
	StartDate *time.Time
	EndDate   *time.Time
	Page      int
	Limit     int
}

type Page struct {
	Transactions []models.TransactionRecord `json:"transactions"`
	Pagination   pagination.Meta            `json:"pagination"`
}

// DebitView is a patient payment enriched for display.
type DebitView struct {
	ID          string          `json:"id"`
	Amount      decimal.Decimal `json:"amount"`
	DoctorName  *string         `json:"doctorName"`
	Time        time.Time       `json:"time"`
	Description string          `json:"description"`
	Service     *string         `json:"service"`
}

// CreditView is a payout line for a doctor or the admin wallet.
type CreditView struct {
	ID          string          `json:"id"`
	Amount      decimal.Decimal `json:"amount"`
	SenderEmail string          `json:"senderEmail"`
	Time        time.Time       `json:"time"`
	Description string          `json:"description"`
	Service     *string         `json:"service"`
	Share       *string         `json:"share"`
}

type Service struct {
	repo     ledger.Repository
	doctors  doctorNamer
	adminKey string
}

func NewService(repo ledger.Repository, doctors doctorNamer, adminKey string) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("transaction repository required")
	}
	if doctors == nil {
		return nil, fmt.Errorf("doctor directory required")
	}
	adminKey = strings.TrimSpace(adminKey)
	if adminKey == "" {
		return nil, fmt.Errorf("admin key required")
	}
	return &Service{repo: repo, doctors: doctors, adminKey: adminKey}, nil
}

// Query pages through every record where the party is sender or receiver,
// newest first.
func (s *Service) Query(ctx context.Context, input QueryInput) (*Page, error) {
	party, err := s.party(input.PartyType, input.PartyID)
	if err != nil {
		return nil, err
	}
	params := pagination.Params{Page: input.Page, Limit: input.Limit}.Normalize()
	filter := ledger.Filter{Party: party, Offset: params.Offset(), Limit: params.Limit}
	if input.StartDate != nil && input.EndDate != nil {
		if input.EndDate.Before(*input.StartDate) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "endDate must not be before startDate")
		}
		filter.From = input.StartDate
		filter.To = input.EndDate
	}

	records, total, err := s.repo.Query(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "query transaction history")
	}
	if records == nil {
		records = []models.TransactionRecord{}
	}
	return &Page{Transactions: records, Pagination: pagination.NewMeta(params, total)}, nil
}

// Recent returns the latest records touching the party.
func (s *Service) Recent(ctx context.Context, partyType, partyID string, limit int) ([]models.TransactionRecord, error) {
	party, err := s.party(partyType, partyID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = RecentLimit
	}
	records, err := s.repo.ListRecentForParty(ctx, party, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list recent transactions")
	}
	return records, nil
}

// Debits lists a patient's payments with the payee's display name taken
// from the doctor directory, or from the record metadata when the directory
// has no entry.
func (s *Service) Debits(ctx context.Context, email string) ([]DebitView, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	records, err := s.repo.ListDebitsBySender(ctx, ledger.Party{Type: enums.PartyTypePatient, ID: email})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list debit transactions")
	}

	ids := make([]string, 0, len(records))
	for _, r := range records {
		if r.ReceiverType == enums.PartyTypeDoctor && r.ReceiverID != "" {
			ids = append(ids, r.ReceiverID)
		}
	}
	names := map[string]string{}
	if len(ids) > 0 {
		if names, err = s.doctors.Names(ctx, ids); err != nil {
			return nil, err
		}
	}

	views := make([]DebitView, 0, len(records))
	for _, r := range records {
		view := DebitView{
			ID:          r.ID,
			Amount:      r.Amount,
			Time:        r.CreatedAt,
			Description: r.Description,
			Service:     metaString(r, "service"),
		}
		if r.ReceiverType == enums.PartyTypeDoctor {
			if name, ok := names[r.ReceiverID]; ok && name != "" {
				view.DoctorName = &name
			}
		}
		if view.DoctorName == nil {
			view.DoctorName = metaString(r, "doctorName")
		}
		views = append(views, view)
	}
	return views, nil
}

// Credits lists the credits received by a doctor or admin wallet.
func (s *Service) Credits(ctx context.Context, receiverType, receiverID string) ([]CreditView, error) {
	party, err := s.party(receiverType, receiverID)
	if err != nil {
		return nil, err
	}
	records, err := s.repo.ListCreditsByReceiver(ctx, party)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list credit transactions")
	}
	views := make([]CreditView, 0, len(records))
	for _, r := range records {
		views = append(views, CreditView{
			ID:          r.ID,
			Amount:      r.Amount,
			SenderEmail: r.SenderID,
			Time:        r.CreatedAt,
			Description: r.Description,
			Service:     metaString(r, "service"),
			Share:       metaString(r, "share"),
		})
	}
	return views, nil
}

func (s *Service) party(rawType, rawID string) (ledger.Party, error) {
	partyType, err := enums.ParsePartyType(strings.ToLower(strings.TrimSpace(rawType)))
	if err != nil {
		return ledger.Party{}, pkgerrors.New(pkgerrors.CodeValidation, "type must be one of patient, doctor, admin, system")
	}
	id := strings.TrimSpace(rawID)
	switch partyType {
	case enums.PartyTypeAdmin:
		if id == "" {
			id = s.adminKey
		}
	case enums.PartyTypePatient:
		id = strings.ToLower(id)
	}
	if id == "" {
		return ledger.Party{}, pkgerrors.New(pkgerrors.CodeValidation, "id is required")
	}
	return ledger.Party{Type: partyType, ID: id}, nil
}

func metaString(r models.TransactionRecord, key string) *string {
	if r.Metadata == nil {
		return nil
	}
	v, ok := r.Metadata[key]
	if !ok || v == nil {
		return nil
	}
	s, ok := v.(string)
	if !ok {
		s = fmt.Sprint(v)
	}
	if s == "" {
		return nil
	}
	return &s
}
