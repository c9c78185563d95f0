// Package verification answers public serial lookups.
//
// Verify is a pure read path: it never writes, never takes a lock and never
// returns or logs enough to re-identify a purchaser.
package verification

import (
	"context"
	"log/slog"
	"strings"

	"audiolicense/internal/certificate"
	"audiolicense/internal/commerce"
	apperrors "audiolicense/internal/errors"
	"audiolicense/internal/infrastructure"
	"audiolicense/pkg/contracts/domain"
)

// Deps are the read-only collaborators of a Service. Metrics may be nil.
type Deps struct {
	Orders   commerce.OrderStore
	Records  certificate.Store
	Products certificate.ProductReader
	Tiers    certificate.TierLookup
	Assets   certificate.AssetReader
	Metrics  *infrastructure.EngineMetrics
}

// Service verifies certificate serials
type Service struct {
	deps   Deps
	prefix string
	logger *slog.Logger
}

// New creates a Service accepting serials with prefix. An empty prefix uses
// certificate.DefaultPrefix.
func New(deps Deps, prefix string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if prefix == "" {
		prefix = certificate.DefaultPrefix
	}
	return &Service{
		deps:   deps,
		prefix: prefix,
		logger: logger.With(slog.String("component", "verification")),
	}
}

// Verify checks serial against the originating order. Misses are reported in
// the result; the error is set only when a collaborator fails.
func (s *Service) Verify(ctx context.Context, serial string) (domain.VerificationResult, error) {
	const op = "verification.Verify"

	res, err := s.verify(ctx, serial)
	if err != nil {
		err = apperrors.Upstream(op, err)
		s.deps.Metrics.RecordVerification(ctx, "error")
		infrastructure.RecordError(ctx, err)
		s.logger.ErrorContext(ctx, "verification failed",
			slog.String("error", err.Error()))
		return domain.VerificationResult{}, err
	}

	result := "valid"
	if !res.Valid {
		result = string(res.Reason)
	}
	s.deps.Metrics.RecordVerification(ctx, result)
	s.logger.InfoContext(ctx, "serial verified", slog.String("result", result))
	return res, nil
}

func invalid(reason domain.VerificationReason) domain.VerificationResult {
	return domain.VerificationResult{Valid: false, Reason: reason}
}

func (s *Service) verify(ctx context.Context, raw string) (domain.VerificationResult, error) {
	parsed, err := certificate.ParseSerial(raw)
	if err != nil || parsed.Prefix != s.prefix {
		return invalid(domain.ReasonMalformedSerial), nil
	}
	serial := parsed.String()

	order, err := s.deps.Orders.GetOrder(ctx, parsed.OrderID)
	if apperrors.IsNotFound(err) {
		return invalid(domain.ReasonNotFound), nil
	}
	if err != nil {
		return domain.VerificationResult{}, err
	}
	if order.Status != domain.OrderStatusCompleted {
		return invalid(domain.ReasonNotYetActive), nil
	}

	item, err := s.deps.Orders.GetOrderItem(ctx, parsed.OrderID, parsed.ItemID)
	if apperrors.IsNotFound(err) {
		return invalid(domain.ReasonDetailsMissing), nil
	}
	if err != nil {
		return domain.VerificationResult{}, err
	}

	details := &domain.VerificationDetails{
		Serial:         serial,
		PurchaserEmail: MaskEmail(order.PurchaserEmail),
	}

	cert, err := s.deps.Records.Get(ctx, parsed.OrderID, parsed.ItemID)
	switch {
	case err == nil:
		if cert.Serial != serial {
			return invalid(domain.ReasonNotFound), nil
		}
		details.AssetTitle = cert.AssetTitle
		details.TierName = cert.TierName
		details.IssuedAt = cert.IssuedAt
	case !apperrors.IsNotFound(err):
		return domain.VerificationResult{}, err
	default:
		details.IssuedAt = order.DateCreated
		if order.DateCompleted != nil {
			details.IssuedAt = *order.DateCompleted
		}
	}

	if details.AssetTitle == "" || details.TierName == "" {
		line, err := certificate.LookupLine(ctx, s.deps.Products, s.deps.Tiers, s.deps.Assets, item)
		if err != nil {
			return domain.VerificationResult{}, err
		}
		if details.AssetTitle == "" {
			details.AssetTitle = line.AssetTitle
		}
		if details.TierName == "" {
			details.TierName = line.TierName
		}
	}

	return domain.VerificationResult{Valid: true, Details: details}, nil
}

// MaskEmail keeps the first and last character of the local part:
// jane@example.com becomes j***e@example.com. Local parts of two characters
// or fewer are masked entirely.
func MaskEmail(email string) string {
	email = strings.TrimSpace(email)
	if email == "" {
		return ""
	}
	local, domainPart, found := strings.Cut(email, "@")

	runes := []rune(local)
	var masked string
	if len(runes) <= 2 {
		masked = strings.Repeat("*", len(runes))
	} else {
		masked = string(runes[0]) + "***" + string(runes[len(runes)-1])
	}
	if !found {
		return masked
	}
	return masked + "@" + domainPart
}
