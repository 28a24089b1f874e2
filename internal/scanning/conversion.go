package scanning

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	"image/png"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/gen2brain/heic"
)

// receiptScanPrompt is shared by every model provider
const receiptScanPrompt = `You are reading a receipt or invoice for an expense shared on a trip. Read all text in the image and extract:

1. **Merchant**: the business name, usually the largest text at the top (e.g. "Trattoria Da Enzo", "Shell", "Airbnb").

2. **Date**: the transaction date, converted to ISO 8601 (YYYY-MM-DD).

3. **Total**: the final amount actually paid, including tax and tip. Look for "TOTAL", "Amount Due", "Grand Total", "Summe" or similar.

4. **Currency**: the ISO 4217 code of the total (e.g. "EUR", "USD", "JPY"), inferred from symbols or the country if not printed.

Return ONLY valid JSON in this exact format:
{
  "title": "Merchant - Brief Description",
  "date": "YYYY-MM-DD",
  "amount": 0.00,
  "currency": "EUR"
}

Important:
- The title should start with the merchant name
- The amount must be a number (not a string) in major units with the decimals printed on the receipt
- If you cannot find a field, use null for that field
- Do not include any text before or after the JSON
- Do not use markdown code blocks`

// heicBrands are the ftyp brands used by HEIC/HEIF files
var heicBrands = map[string]bool{"heic": true, "heif": true, "mif1": true, "msf1": true}

// isHEIC checks the ftyp box magic bytes and the declared MIME type
func isHEIC(data []byte, mimeType string) bool {
	if len(data) >= 12 && string(data[4:8]) == "ftyp" && heicBrands[string(data[8:12])] {
		return true
	}
	return strings.Contains(mimeType, "heic") || strings.Contains(mimeType, "heif")
}

// decodeImage decodes a receipt into an image, rendering the first page of PDFs
func decodeImage(data []byte, mimeType string) (image.Image, error) {
	switch {
	case mimeType == "application/pdf":
		doc, err := fitz.NewFromMemory(data)
		if err != nil {
			return nil, fmt.Errorf("opening PDF: %w", err)
		}
		defer doc.Close()
		img, err := doc.Image(0)
		if err != nil {
			return nil, fmt.Errorf("rendering PDF page: %w", err)
		}
		return img, nil
	case isHEIC(data, mimeType):
		img, err := heic.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decoding HEIC/HEIF image: %w", err)
		}
		return img, nil
	default:
		img, _, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("unsupported image format (supported: JPEG, PNG, GIF, HEIC, HEIF, PDF): %w", err)
		}
		return img, nil
	}
}

// prepareImageData normalizes a receipt to PNG, which every provider accepts
func prepareImageData(data []byte, contentType string) ([]byte, error) {
	mimeType := strings.ToLower(strings.TrimSpace(contentType))
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	if mimeType == "image/png" && !isHEIC(data, mimeType) {
		return data, nil
	}

	img, err := decodeImage(data, mimeType)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}
	return buf.Bytes(), nil
}
