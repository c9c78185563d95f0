package postgres

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"audiolicense/pkg/contracts/domain"
)

type tierModel struct {
	CatalogID   string          `gorm:"column:catalog_id;primaryKey"`
	TierID      string          `gorm:"column:tier_id;primaryKey"`
	Slug        string          `gorm:"column:slug"`
	Name        string          `gorm:"column:name"`
	PriceType   string          `gorm:"column:price_type"`
	PriceValue  decimal.Decimal `gorm:"column:price_value;type:numeric(12,2)"`
	Active      bool            `gorm:"column:active"`
	IsDefault   bool            `gorm:"column:is_default"`
	SortOrder   int             `gorm:"column:sort_order"`
	Popular     bool            `gorm:"column:popular"`
	Description string          `gorm:"column:description"`
	Features    string          `gorm:"column:features;type:jsonb"`
	Position    int             `gorm:"column:position"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime:false"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime:false"`
}

func (tierModel) TableName() string { return "license_tiers" }

type certificateModel struct {
	OrderID     int64     `gorm:"column:order_id;primaryKey;autoIncrement:false"`
	OrderItemID int64     `gorm:"column:order_item_id;primaryKey;autoIncrement:false"`
	Serial      string    `gorm:"column:serial"`
	AssetID     string    `gorm:"column:asset_id"`
	TierID      string    `gorm:"column:tier_id"`
	TierName    string    `gorm:"column:tier_name"`
	AssetTitle  string    `gorm:"column:asset_title"`
	IssuedAt    time.Time `gorm:"column:issued_at"`
	FilePath    string    `gorm:"column:file_path"`
}

func (certificateModel) TableName() string { return "license_certificates" }

func toTierModel(catalogID string, position int, t domain.LicenseTier) (tierModel, error) {
	features := t.Features
	if features == nil {
		features = []string{}
	}
	raw, err := json.Marshal(features)
	if err != nil {
		return tierModel{}, err
	}
	return tierModel{
		CatalogID:   catalogID,
		TierID:      t.ID,
		Slug:        t.Slug,
		Name:        t.Name,
		PriceType:   string(t.PriceType),
		PriceValue:  t.PriceValue,
		Active:      t.Active,
		IsDefault:   t.IsDefault,
		SortOrder:   t.SortOrder,
		Popular:     t.Popular,
		Description: t.Description,
		Features:    string(raw),
		Position:    position,
		CreatedAt:   t.CreatedAt.UTC(),
		UpdatedAt:   t.UpdatedAt.UTC(),
	}, nil
}

func (m tierModel) toDomain() (domain.LicenseTier, error) {
	var features []string
	if m.Features != "" {
		if err := json.Unmarshal([]byte(m.Features), &features); err != nil {
			return domain.LicenseTier{}, err
		}
	}
	if len(features) == 0 {
		features = nil
	}
	return domain.LicenseTier{
		ID:          m.TierID,
		Slug:        m.Slug,
		Name:        m.Name,
		PriceType:   domain.PriceType(m.PriceType),
		PriceValue:  m.PriceValue,
		Active:      m.Active,
		IsDefault:   m.IsDefault,
		SortOrder:   m.SortOrder,
		Popular:     m.Popular,
		Description: m.Description,
		Features:    features,
		CreatedAt:   m.CreatedAt.UTC(),
		UpdatedAt:   m.UpdatedAt.UTC(),
	}, nil
}

func toCertificateModel(c domain.Certificate) certificateModel {
	return certificateModel{
		OrderID:     c.OrderID,
		OrderItemID: c.OrderItemID,
		Serial:      c.Serial,
		AssetID:     c.AssetID,
		TierID:      c.TierID,
		TierName:    c.TierName,
		AssetTitle:  c.AssetTitle,
		IssuedAt:    c.IssuedAt.UTC(),
		FilePath:    c.FilePath,
	}
}

func (m certificateModel) toDomain() domain.Certificate {
	return domain.Certificate{
		Serial:      m.Serial,
		OrderID:     m.OrderID,
		OrderItemID: m.OrderItemID,
		AssetID:     m.AssetID,
		TierID:      m.TierID,
		TierName:    m.TierName,
		AssetTitle:  m.AssetTitle,
		IssuedAt:    m.IssuedAt.UTC(),
		FilePath:    m.FilePath,
	}
}
