package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "audiolicense/internal/errors"
	"audiolicense/pkg/contracts/domain"
)

// CatalogRepository stores catalog tiers as rows of license_tiers
type CatalogRepository struct {
	db *gorm.DB
}

// NewCatalogRepository creates a CatalogRepository
func NewCatalogRepository(db *gorm.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// Load returns the tiers of catalogID in saved order
func (r *CatalogRepository) Load(ctx context.Context, catalogID string) ([]domain.LicenseTier, error) {
	var rows []tierModel
	if err := r.db.WithContext(ctx).
		Where("catalog_id = ?", catalogID).
		Order("position ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load catalog %s: %w", catalogID, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	tiers := make([]domain.LicenseTier, 0, len(rows))
	for _, row := range rows {
		t, err := row.toDomain()
		if err != nil {
			return nil, fmt.Errorf("decode tier %s: %w", row.TierID, err)
		}
		tiers = append(tiers, t)
	}
	return tiers, nil
}

// Save replaces the stored tiers of catalogID in one transaction
func (r *CatalogRepository) Save(ctx context.Context, catalogID string, tiers []domain.LicenseTier) error {
	rows := make([]tierModel, 0, len(tiers))
	for i, t := range tiers {
		row, err := toTierModel(catalogID, i, t)
		if err != nil {
			return fmt.Errorf("encode tier %s: %w", t.ID, err)
		}
		rows = append(rows, row)
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("catalog_id = ?", catalogID).Delete(&tierModel{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.Create(&rows).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperrors.Conflict("postgres.CatalogRepository.Save", "catalog %s violates a uniqueness constraint", catalogID)
	}
	if err != nil {
		return fmt.Errorf("save catalog %s: %w", catalogID, err)
	}
	return nil
}

// CertificateStore stores one row per (order, item) in license_certificates
type CertificateStore struct {
	db *gorm.DB
}

// NewCertificateStore creates a CertificateStore
func NewCertificateStore(db *gorm.DB) *CertificateStore {
	return &CertificateStore{db: db}
}

// Get returns the record of an order line
func (s *CertificateStore) Get(ctx context.Context, orderID, itemID int64) (domain.Certificate, error) {
	var row certificateModel
	err := s.db.WithContext(ctx).
		Where("order_id = ? AND order_item_id = ?", orderID, itemID).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Certificate{}, apperrors.NotFound("postgres.CertificateStore.Get", "certificate",
			strconv.FormatInt(orderID, 10)+"/"+strconv.FormatInt(itemID, 10))
	}
	if err != nil {
		return domain.Certificate{}, fmt.Errorf("get certificate %d/%d: %w", orderID, itemID, err)
	}
	return row.toDomain(), nil
}

// Save inserts the record. Records are immutable, so an existing row for the
// pair is left as it is.
func (s *CertificateStore) Save(ctx context.Context, cert domain.Certificate) error {
	row := toCertificateModel(cert)
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "order_id"}, {Name: "order_item_id"}},
			DoNothing: true,
		}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("save certificate %s: %w", cert.Serial, err)
	}
	return nil
}
