package domain

import (
	"time"
)

// OrderStatus is the fulfillment state reported by the order store
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusOnHold     OrderStatus = "on-hold"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusRefunded   OrderStatus = "refunded"
)

// Order is the subset of a commerce order the engine reads
type Order struct {
	ID             int64       `json:"id" yaml:"id"`
	Status         OrderStatus `json:"status" yaml:"status"`
	PurchaserEmail string      `json:"purchaser_email" yaml:"purchaser_email"`
	PurchaserName  string      `json:"purchaser_name" yaml:"purchaser_name"`
	DateCreated    time.Time   `json:"date_created" yaml:"date_created"`
	DateCompleted  *time.Time  `json:"date_completed,omitempty" yaml:"date_completed"`
	Items          []OrderItem `json:"items,omitempty" yaml:"items"`
}

// OrderItem is one purchased line of an order
type OrderItem struct {
	ID          int64  `json:"id" yaml:"id"`
	OrderID     int64  `json:"order_id" yaml:"order_id"`
	ProductID   string `json:"product_id" yaml:"product_id"`
	VariationID string `json:"variation_id,omitempty" yaml:"variation_id"`
	Name        string `json:"name" yaml:"name"`
}

// Certificate is the persisted proof-of-license for one order line
type Certificate struct {
	Serial      string    `json:"serial"`
	OrderID     int64     `json:"order_id"`
	OrderItemID int64     `json:"order_item_id"`
	AssetID     string    `json:"asset_id,omitempty"`
	TierID      string    `json:"tier_id,omitempty"`
	TierName    string    `json:"tier_name,omitempty"`
	AssetTitle  string    `json:"asset_title,omitempty"`
	IssuedAt    time.Time `json:"issued_at"`
	FilePath    string    `json:"file_path"`
}

// CertificateRef is returned to callers of certificate issuance
type CertificateRef struct {
	Serial          string    `json:"serial"`
	OrderID         int64     `json:"order_id"`
	OrderItemID     int64     `json:"order_item_id"`
	AssetID         string    `json:"asset_id,omitempty"`
	IssuedAt        time.Time `json:"issued_at"`
	FilePath        string    `json:"file_path"`
	DownloadURL     string    `json:"download_url"`
	VerificationURL string    `json:"verification_url"`
	Reused          bool      `json:"reused"`
}

// VerificationReason explains why a serial did not verify
type VerificationReason string

const (
	ReasonMalformedSerial VerificationReason = "MalformedSerial"
	ReasonNotFound        VerificationReason = "NotFound"
	ReasonNotYetActive    VerificationReason = "NotYetActive"
	ReasonDetailsMissing  VerificationReason = "DetailsMissing"
)

// VerificationDetails is the redacted proof record for a valid serial
type VerificationDetails struct {
	Serial         string    `json:"serial"`
	AssetTitle     string    `json:"asset_title"`
	TierName       string    `json:"tier_name"`
	IssuedAt       time.Time `json:"issued_at"`
	PurchaserEmail string    `json:"purchaser_email"`
}

// VerificationResult is the public answer to a serial lookup
type VerificationResult struct {
	Valid   bool                 `json:"valid"`
	Reason  VerificationReason   `json:"reason,omitempty"`
	Details *VerificationDetails `json:"details,omitempty"`
}
