package wallet

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/healthoasis/wallet-backend/pkg/db/models"
	"github.com/healthoasis/wallet-backend/pkg/enums"
	pkgerrors "github.com/healthoasis/wallet-backend/pkg/errors"
	"github.com/healthoasis/wallet-backend/pkg/money"
)

// DefaultAdminKey is the account key of the admin singleton when none is configured.
const DefaultAdminKey = "1"

// Store persists wallet accounts and their embedded entry logs. Balance
// mutations must run on a store bound to the caller's transaction.
type Store struct {
	db       *gorm.DB
	adminKey string
}

// EntryInput describes the log line written next to a balance mutation.
type EntryInput struct {
	ID          string
	Description string
	Metadata    map[string]any
	CreatedAt   time.Time
}

// Mutation is the outcome of a credit or debit.
type Mutation struct {
	Account *models.WalletAccount
	Entry   *models.WalletAccountEntry
}

func NewStore(db *gorm.DB, adminKey string) *Store {
	adminKey = strings.TrimSpace(adminKey)
	if adminKey == "" {
		adminKey = DefaultAdminKey
	}
	return &Store{db: db, adminKey: adminKey}
}

// WithTx returns a store bound to tx.
func (s *Store) WithTx(tx *gorm.DB) *Store {
	if tx == nil {
		return s
	}
	return &Store{db: tx, adminKey: s.adminKey}
}

// AdminKey is the configured key of the admin singleton.
func (s *Store) AdminKey() string {
	return s.adminKey
}

// Normalize applies the kind policy to ref.
func (s *Store) Normalize(ref AccountRef) (AccountRef, error) {
	policy, err := s.policyFor(ref.Kind)
	if err != nil {
		return AccountRef{}, err
	}
	key, err := policy.normalize(ref.Key)
	if err != nil {
		return AccountRef{}, err
	}
	return AccountRef{Kind: ref.Kind, Key: key}, nil
}

// Get loads an account or fails with NOT_FOUND.
func (s *Store) Get(ctx context.Context, ref AccountRef) (*models.WalletAccount, error) {
	ref, err := s.Normalize(ref)
	if err != nil {
		return nil, err
	}
	return s.load(s.db.WithContext(ctx), ref)
}

// Create inserts a new account. An existing account is a CONFLICT.
func (s *Store) Create(ctx context.Context, ref AccountRef, initialBalance decimal.Decimal) (*models.WalletAccount, error) {
	ref, err := s.Normalize(ref)
	if err != nil {
		return nil, err
	}
	if initialBalance.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "initial balance cannot be negative")
	}
	account := &models.WalletAccount{
		Kind:       ref.Kind,
		AccountKey: ref.Key,
		Balance:    initialBalance.Round(money.Places),
	}
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(account)
	if res.Error != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "create wallet account")
	}
	if res.RowsAffected == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "account already exists").
			WithDetails(map[string]any{"kind": ref.Kind, "key": ref.Key})
	}
	return account, nil
}

// Ensure returns the account, creating it with a zero balance when missing.
// Concurrent callers converge on the same row.
func (s *Store) Ensure(ctx context.Context, ref AccountRef) (*models.WalletAccount, error) {
	ref, err := s.Normalize(ref)
	if err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)
	account := &models.WalletAccount{Kind: ref.Kind, AccountKey: ref.Key, Balance: decimal.Zero}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(account).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "ensure wallet account")
	}
	return s.load(db, ref)
}

// Lock loads and row-locks every referenced account in (kind, key) order so
// concurrent settlements touching the same accounts cannot deadlock.
func (s *Store) Lock(ctx context.Context, refs ...AccountRef) (map[AccountRef]*models.WalletAccount, error) {
	normalized := make([]AccountRef, 0, len(refs))
	seen := make(map[AccountRef]struct{}, len(refs))
	for _, ref := range refs {
		n, err := s.Normalize(ref)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		normalized = append(normalized, n)
	}
	sort.Slice(normalized, func(i, j int) bool {
		if normalized[i].Kind != normalized[j].Kind {
			return normalized[i].Kind < normalized[j].Kind
		}
		return normalized[i].Key < normalized[j].Key
	})

	db := s.db.WithContext(ctx)
	locked := make(map[AccountRef]*models.WalletAccount, len(normalized))
	for _, ref := range normalized {
		account, err := s.load(db.Clauses(clause.Locking{Strength: "UPDATE"}), ref)
		if err != nil {
			return nil, err
		}
		locked[ref] = account
	}
	return locked, nil
}

// Credit adds amount to the account balance and appends a credit entry.
func (s *Store) Credit(ctx context.Context, ref AccountRef, amount decimal.Decimal, entry EntryInput) (*Mutation, error) {
	return s.apply(ctx, ref, enums.TransactionTypeCredit, amount, entry)
}

// Debit subtracts amount from the account balance and appends a debit entry.
// It fails with INSUFFICIENT_FUNDS when amount exceeds the balance.
func (s *Store) Debit(ctx context.Context, ref AccountRef, amount decimal.Decimal, entry EntryInput) (*Mutation, error) {
	return s.apply(ctx, ref, enums.TransactionTypeDebit, amount, entry)
}

func (s *Store) apply(ctx context.Context, ref AccountRef, typ enums.TransactionType, amount decimal.Decimal, entry EntryInput) (*Mutation, error) {
	ref, err := s.Normalize(ref)
	if err != nil {
		return nil, err
	}
	amount, err = money.Normalize(amount)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(entry.ID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "entry id is required")
	}

	db := s.db.WithContext(ctx)
	account, err := s.load(db.Clauses(clause.Locking{Strength: "UPDATE"}), ref)
	if err != nil {
		return nil, err
	}

	next := account.Balance.Add(amount)
	if typ == enums.TransactionTypeDebit {
		if amount.GreaterThan(account.Balance) {
			return nil, pkgerrors.InsufficientFunds(ref.Key, account.Balance, amount)
		}
		next = account.Balance.Sub(amount)
	}

	now := entry.CreatedAt.UTC()
	if entry.CreatedAt.IsZero() {
		now = time.Now().UTC()
	}
	if err := db.Model(&models.WalletAccount{}).
		Where("id = ?", account.ID).
		Updates(map[string]any{"balance": next, "updated_at": now}).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update wallet balance")
	}
	account.Balance = next
	account.UpdatedAt = now

	var last int64
	if err := db.Model(&models.WalletAccountEntry{}).
		Where("account_id = ?", account.ID).
		Select("COALESCE(MAX(sequence), 0)").
		Scan(&last).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "read entry sequence")
	}

	row := &models.WalletAccountEntry{
		ID:           entry.ID,
		AccountID:    account.ID,
		Sequence:     last + 1,
		Type:         typ,
		Amount:       amount,
		BalanceAfter: next,
		Description:  strings.TrimSpace(entry.Description),
		CreatedAt:    now,
	}
	if len(entry.Metadata) > 0 {
		row.Metadata = datatypes.JSONMap(entry.Metadata)
	}
	if err := db.Create(row).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "append wallet entry")
	}

	return &Mutation{Account: account, Entry: row}, nil
}

// Entries returns the account's log in append order.
func (s *Store) Entries(ctx context.Context, ref AccountRef) ([]models.WalletAccountEntry, error) {
	account, err := s.Get(ctx, ref)
	if err != nil {
		return nil, err
	}
	var entries []models.WalletAccountEntry
	if err := s.db.WithContext(ctx).
		Where("account_id = ?", account.ID).
		Order("sequence ASC").
		Find(&entries).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list wallet entries")
	}
	return entries, nil
}

// ListByKind returns every account of a family, largest balance first.
func (s *Store) ListByKind(ctx context.Context, kind enums.AccountKind) ([]models.WalletAccount, error) {
	if !kind.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid account kind %q", kind))
	}
	var accounts []models.WalletAccount
	if err := s.db.WithContext(ctx).
		Where("kind = ?", kind).
		Order("balance DESC").Order("account_key ASC").
		Find(&accounts).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list wallet accounts")
	}
	return accounts, nil
}

func (s *Store) load(db *gorm.DB, ref AccountRef) (*models.WalletAccount, error) {
	var account models.WalletAccount
	err := db.Where("kind = ? AND account_key = ?", ref.Kind, ref.Key).First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "account not found").
			WithDetails(map[string]any{"kind": ref.Kind, "key": ref.Key})
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load wallet account")
	}
	return &account, nil
}
