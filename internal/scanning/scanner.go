package scanning

import (
	"context"

	"github.com/zombor/trip-ledger/internal/money"
)

// ReceiptData is what a scanner could read off a receipt. It is only ever a
// candidate expense; nothing here touches balances until a member saves it.
type ReceiptData struct {
	Title    string      `json:"title"`
	Date     string      `json:"date"` // YYYY-MM-DD
	Amount   money.Money `json:"amount"`
	Currency string      `json:"currency,omitempty"` // ISO 4217 code, empty if not printed
}

// Scanner extracts receipt data from an image or PDF
type Scanner interface {
	// ScanReceipt analyzes a receipt image/PDF and extracts metadata
	ScanReceipt(ctx context.Context, imageData []byte, contentType string) (*ReceiptData, error)
	// Close releases the scanner's resources
	Close() error
}
