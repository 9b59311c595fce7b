package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

type Variant struct {
	SizeID  int64 `json:"size_id,omitempty"`
	ColorID int64 `json:"color_id,omitempty"`
}

type CartItem struct {
	ID            string          `json:"id"`
	ProductID     int64           `json:"product_id"`
	Title         string          `json:"title"`
	Quantity      int             `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	Variant       *Variant        `json:"variant,omitempty"`
	ImageURL      string          `json:"image_url,omitempty"`
	StockQuantity int             `json:"stock_quantity"`
}

// LineKey identifies a line by product and variant. Two lines with the same
// key are the same line.
func (i CartItem) LineKey() string {
	if i.Variant == nil || (i.Variant.SizeID == 0 && i.Variant.ColorID == 0) {
		return fmt.Sprintf("%d", i.ProductID)
	}
	return fmt.Sprintf("%d:s%d:c%d", i.ProductID, i.Variant.SizeID, i.Variant.ColorID)
}

// LineID returns the server-assigned ID, falling back to the line key.
func (i CartItem) LineID() string {
	if i.ID != "" {
		return i.ID
	}
	return i.LineKey()
}

func (i CartItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// HasStockLimit reports whether the last product fetch reported a stock level.
func (i CartItem) HasStockLimit() bool {
	return i.StockQuantity > 0
}

type Cart struct {
	Items []CartItem `json:"items"`
}

func (c Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

func (c Cart) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.Subtotal())
	}
	return total
}

func (c Cart) ItemCount() int {
	n := 0
	for _, item := range c.Items {
		n += item.Quantity
	}
	return n
}
