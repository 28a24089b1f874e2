package scanning

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/zombor/trip-ledger/internal/money"
)

const dateLayout = "2006-01-02"

// alternative layouts models sometimes return despite the prompt
var fallbackDateLayouts = []string{
	"2006/01/02",
	"01/02/2006",
	"02.01.2006",
	"02-01-2006",
}

// extractJSON strips markdown fences and any chatter around the first JSON object
func extractJSON(text string) (string, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSpace(text)

	start := strings.Index(text, "{")
	if start == -1 {
		return "", fmt.Errorf("no JSON object found in response")
	}
	end := strings.LastIndex(text, "}")
	if end == -1 || end < start {
		return "", fmt.Errorf("invalid JSON object in response")
	}
	return text[start : end+1], nil
}

// parseReceiptJSON turns a model response into ReceiptData. The amount becomes
// exact Money straight from the JSON literal, never via float64.
func parseReceiptJSON(text string, now time.Time) (*ReceiptData, error) {
	raw, err := extractJSON(text)
	if err != nil {
		return nil, err
	}

	var data ReceiptData
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}

	data.Date = normalizeDate(data.Date, now)

	data.Title = strings.TrimSpace(data.Title)
	if data.Title == "" {
		data.Title = "Unknown Expense"
	}

	data.Currency = strings.ToUpper(strings.TrimSpace(data.Currency))
	if len(data.Currency) != 3 {
		data.Currency = ""
	}

	// events only hold whole cents
	data.Amount = data.Amount.Abs().Round(money.MinorUnitPlaces)

	return &data, nil
}

// normalizeDate returns date as YYYY-MM-DD, falling back to now when unreadable
func normalizeDate(date string, now time.Time) string {
	date = strings.TrimSpace(date)
	if date == "" {
		return now.Format(dateLayout)
	}
	if d, err := time.Parse(dateLayout, date); err == nil {
		return d.Format(dateLayout)
	}
	for _, layout := range fallbackDateLayouts {
		if d, err := time.Parse(layout, date); err == nil {
			return d.Format(dateLayout)
		}
	}
	return now.Format(dateLayout)
}
