package woo

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	apperrors "audiolicense/internal/errors"
	"audiolicense/pkg/contracts/domain"
)

// WooCommerce reports GMT timestamps without a zone designator
const wcTimeLayout = "2006-01-02T15:04:05"

type wcBilling struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

type wcLineItem struct {
	ID          int64  `json:"id"`
	ProductID   int64  `json:"product_id"`
	VariationID int64  `json:"variation_id"`
	Name        string `json:"name"`
}

type wcOrder struct {
	ID               int64        `json:"id"`
	Status           string       `json:"status"`
	DateCreatedGMT   string       `json:"date_created_gmt"`
	DateCompletedGMT *string      `json:"date_completed_gmt"`
	Billing          wcBilling    `json:"billing"`
	LineItems        []wcLineItem `json:"line_items"`
}

func parseWCTime(s string) (time.Time, error) {
	if t, err := time.ParseInLocation(wcTimeLayout, s, time.UTC); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

func fromWCOrder(o wcOrder) (domain.Order, error) {
	created, err := parseWCTime(o.DateCreatedGMT)
	if err != nil {
		return domain.Order{}, fmt.Errorf("order %d: bad date_created_gmt %q: %w", o.ID, o.DateCreatedGMT, err)
	}
	out := domain.Order{
		ID:             o.ID,
		Status:         domain.OrderStatus(o.Status),
		PurchaserEmail: o.Billing.Email,
		PurchaserName:  strings.TrimSpace(o.Billing.FirstName + " " + o.Billing.LastName),
		DateCreated:    created,
	}
	if o.DateCompletedGMT != nil && *o.DateCompletedGMT != "" {
		completed, err := parseWCTime(*o.DateCompletedGMT)
		if err != nil {
			return domain.Order{}, fmt.Errorf("order %d: bad date_completed_gmt %q: %w", o.ID, *o.DateCompletedGMT, err)
		}
		out.DateCompleted = &completed
	}
	for _, li := range o.LineItems {
		out.Items = append(out.Items, domain.OrderItem{
			ID:          li.ID,
			OrderID:     o.ID,
			ProductID:   formatID(li.ProductID),
			VariationID: formatID(li.VariationID),
			Name:        li.Name,
		})
	}
	return out, nil
}

// GetOrder implements commerce.OrderStore
func (c *Client) GetOrder(ctx context.Context, orderID int64) (domain.Order, error) {
	id := strconv.FormatInt(orderID, 10)
	var raw wcOrder
	if err := c.do(ctx, "GET", "/orders/"+id, nil, nil, &raw, "order", id); err != nil {
		return domain.Order{}, err
	}
	o, err := fromWCOrder(raw)
	if err != nil {
		return domain.Order{}, apperrors.Upstream("woo.GetOrder", err)
	}
	return o, nil
}

// GetOrderItem implements commerce.OrderStore
func (c *Client) GetOrderItem(ctx context.Context, orderID, itemID int64) (domain.OrderItem, error) {
	o, err := c.GetOrder(ctx, orderID)
	if err != nil {
		return domain.OrderItem{}, err
	}
	for _, it := range o.Items {
		if it.ID == itemID {
			return it, nil
		}
	}
	return domain.OrderItem{}, apperrors.NotFound("woo.GetOrderItem", "order item", strconv.FormatInt(itemID, 10))
}

// Ping checks the store answers authenticated requests
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, "GET", "", nil, nil, nil, "", "")
}
