package ledger

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/healthoasis/wallet-backend/pkg/db/models"
	"github.com/healthoasis/wallet-backend/pkg/enums"
)

// Party names one side of a transaction record.
type Party struct {
	Type enums.PartyType
	ID   string
}

// Filter narrows a party history query. A record matches when the party is
// either the sender or the receiver.
type Filter struct {
	Party  Party
	From   *time.Time
	To     *time.Time
	Offset int
	Limit  int
}

// Repository manages persistence for transaction records.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, record *models.TransactionRecord) error
	CreateBatch(ctx context.Context, records []*models.TransactionRecord) error
	FindByID(ctx context.Context, id string) (*models.TransactionRecord, error)
	ExistsByExternalRef(ctx context.Context, ref string) (bool, error)
	Query(ctx context.Context, filter Filter) ([]models.TransactionRecord, int64, error)
	ListDebitsBySender(ctx context.Context, sender Party) ([]models.TransactionRecord, error)
	ListCreditsByReceiver(ctx context.Context, receiver Party) ([]models.TransactionRecord, error)
	ListRecentForParty(ctx context.Context, party Party, limit int) ([]models.TransactionRecord, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a transaction repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, record *models.TransactionRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *repository) CreateBatch(ctx context.Context, records []*models.TransactionRecord) error {
	if len(records) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&records).Error
}

func (r *repository) FindByID(ctx context.Context, id string) (*models.TransactionRecord, error) {
	var record models.TransactionRecord
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *repository) ExistsByExternalRef(ctx context.Context, ref string) (bool, error) {
	if ref == "" {
		return false, nil
	}
	var record models.TransactionRecord
	err := r.db.WithContext(ctx).
		Select("id").
		Where("external_ref = ?", ref).
		Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *repository) partyScope(ctx context.Context, party Party) *gorm.DB {
	return r.db.WithContext(ctx).
		Model(&models.TransactionRecord{}).
		Where("((sender_type = ? AND sender_id = ?) OR (receiver_type = ? AND receiver_id = ?))",
			party.Type, party.ID, party.Type, party.ID)
}

func (r *repository) Query(ctx context.Context, filter Filter) ([]models.TransactionRecord, int64, error) {
	scope := func() *gorm.DB {
		q := r.partyScope(ctx, filter.Party)
		if filter.From != nil && filter.To != nil {
			q = q.Where("created_at >= ? AND created_at <= ?", filter.From.UTC(), filter.To.UTC())
		}
		return q
	}

	var total int64
	if err := scope().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var records []models.TransactionRecord
	q := scope().Order("created_at DESC").Order("id DESC")
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if err := q.Find(&records).Error; err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

func (r *repository) ListDebitsBySender(ctx context.Context, sender Party) ([]models.TransactionRecord, error) {
	var records []models.TransactionRecord
	if err := r.db.WithContext(ctx).
		Where("type = ? AND sender_type = ? AND sender_id = ?", enums.TransactionTypeDebit, sender.Type, sender.ID).
		Order("created_at DESC").Order("id DESC").
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (r *repository) ListCreditsByReceiver(ctx context.Context, receiver Party) ([]models.TransactionRecord, error) {
	var records []models.TransactionRecord
	if err := r.db.WithContext(ctx).
		Where("type = ? AND receiver_type = ? AND receiver_id = ?", enums.TransactionTypeCredit, receiver.Type, receiver.ID).
		Order("created_at DESC").Order("id DESC").
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (r *repository) ListRecentForParty(ctx context.Context, party Party, limit int) ([]models.TransactionRecord, error) {
	var records []models.TransactionRecord
	q := r.partyScope(ctx, party).Order("created_at DESC").Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}
