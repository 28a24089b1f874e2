package trip

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zombor/trip-ledger/internal/currency"
	"github.com/zombor/trip-ledger/internal/ledger"
	"github.com/zombor/trip-ledger/internal/money"
	"github.com/zombor/trip-ledger/internal/scanning"
)

var (
	// ErrInvalidInput is returned when a request fails validation
	ErrInvalidInput = errors.New("invalid input")

	// ErrScanningDisabled is returned by ScanReceipt when no scanner is configured
	ErrScanningDisabled = errors.New("receipt scanning is disabled")
)

// IDGenerator generates unique IDs for trips, members and events
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type uuidGenerator struct{}

func (g *uuidGenerator) Generate() string {
	return uuid.NewString()
}

type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now().UTC()
}

// EventInput is a cost event as submitted by a member, possibly in a foreign currency
type EventInput struct {
	Title        string            `json:"title"`
	Kind         ledger.Kind       `json:"kind"`
	Visibility   ledger.Visibility `json:"visibility"`
	CreatorID    string            `json:"creator_id"`
	Payer        string            `json:"payer"`
	Amount       money.Money       `json:"amount"`
	Currency     string            `json:"currency,omitempty"`
	Participants []string          `json:"participants"`
	Shares       ledger.Shares     `json:"shares,omitempty"`
	Timestamp    time.Time         `json:"timestamp"`
	ReceiptFile  string            `json:"receipt_file,omitempty"`
	ContentType  string            `json:"content_type,omitempty"`
}

// Service handles trips, their rosters and cost events
type Service struct {
	db          DB
	scanner     scanning.Scanner
	storage     Storage
	rates       currency.RateSource
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewService creates a new Service with UUID IDs and the wall clock.
// scanner and rates may be nil to disable scanning and foreign currencies.
func NewService(db DB, scanner scanning.Scanner, storage Storage, rates currency.RateSource) *Service {
	return NewServiceWithDeps(db, scanner, storage, rates, &uuidGenerator{}, &defaultTimeSource{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, scanner scanning.Scanner, storage Storage, rates currency.RateSource, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		db:          db,
		scanner:     scanner,
		storage:     storage,
		rates:       rates,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

var (
	filenameSpecialChars = regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	filenameSpaces       = regexp.MustCompile(`\s+`)
)

// sanitizeFilename strips special characters and truncates long phone-generated names
func sanitizeFilename(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))

	base = filenameSpecialChars.ReplaceAllString(base, "")
	base = filenameSpaces.ReplaceAllString(base, " ")
	base = strings.TrimSpace(base)

	if len(base) > 50 {
		base = base[:50]
	}
	if base == "" {
		base = "receipt"
	}
	return base + filenameSpecialChars.ReplaceAllString(ext, "")
}

func normalizeCurrency(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// CreateTrip creates a trip with an initial roster
func (s *Service) CreateTrip(name, accountingCurrency string, memberNames []string) (*Trip, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: trip name is required", ErrInvalidInput)
	}
	code := normalizeCurrency(accountingCurrency)
	if len(code) != 3 {
		return nil, fmt.Errorf("%w: currency must be a 3-letter code, got %q", ErrInvalidInput, accountingCurrency)
	}

	now := s.timeSource.Now()
	trip := &Trip{
		ID:        s.idGenerator.Generate(),
		Name:      name,
		Currency:  code,
		Members:   make([]Member, 0, len(memberNames)),
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, memberName := range memberNames {
		memberName = strings.TrimSpace(memberName)
		if memberName == "" {
			return nil, fmt.Errorf("%w: member name is required", ErrInvalidInput)
		}
		trip.Members = append(trip.Members, Member{
			ID:       s.idGenerator.Generate(),
			Name:     memberName,
			Active:   true,
			JoinedAt: now,
		})
	}

	if err := s.db.SaveTrip(trip); err != nil {
		return nil, fmt.Errorf("saving trip: %w", err)
	}
	slog.Info("Trip created", "trip_id", trip.ID, "members", len(trip.Members), "currency", trip.Currency)
	return trip, nil
}

// GetTrip retrieves a trip by ID
func (s *Service) GetTrip(id string) (*Trip, error) {
	trip, err := s.db.GetTrip(id)
	if err != nil {
		return nil, fmt.Errorf("getting trip: %w", err)
	}
	return trip, nil
}

// ListTrips returns all trips
func (s *Service) ListTrips() ([]*Trip, error) {
	trips, err := s.db.ListTrips()
	if err != nil {
		return nil, fmt.Errorf("listing trips: %w", err)
	}
	return trips, nil
}

// AddMember adds a person to a trip's roster
func (s *Service) AddMember(tripID, name string) (*Member, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: member name is required", ErrInvalidInput)
	}

	trip, err := s.GetTrip(tripID)
	if err != nil {
		return nil, err
	}

	now := s.timeSource.Now()
	member := Member{
		ID:       s.idGenerator.Generate(),
		Name:     name,
		Active:   true,
		JoinedAt: now,
	}
	trip.Members = append(trip.Members, member)
	trip.UpdatedAt = now

	if err := s.db.SaveTrip(trip); err != nil {
		return nil, fmt.Errorf("saving trip: %w", err)
	}
	return &member, nil
}

// DeactivateMember marks a member inactive. Their history stays in the ledger.
func (s *Service) DeactivateMember(tripID, memberID string) error {
	trip, err := s.GetTrip(tripID)
	if err != nil {
		return err
	}
	member, ok := trip.Member(memberID)
	if !ok {
		return fmt.Errorf("member %s: %w", memberID, ErrNotFound)
	}

	member.Active = false
	trip.UpdatedAt = s.timeSource.Now()
	if err := s.db.SaveTrip(trip); err != nil {
		return fmt.Errorf("saving trip: %w", err)
	}
	return nil
}

// requireMembers checks every ID belongs to the trip's roster
func requireMembers(trip *Trip, ids ...string) error {
	for _, id := range ids {
		if _, ok := trip.Member(id); !ok {
			return fmt.Errorf("%w: %s is not a member of trip %s", ErrInvalidInput, id, trip.ID)
		}
	}
	return nil
}

// convertEvent expresses the amount and shares in the trip currency. Shares
// are converted one by one, so any rounding drift is folded into the first
// participant holding an explicit share to keep the split consistent.
func (s *Service) convertEvent(trip *Trip, event *ledger.CostEvent, from string) error {
	if s.rates == nil {
		return fmt.Errorf("converting %s to %s: %w", from, trip.Currency, currency.ErrRateNotFound)
	}

	consistent := event.HasConsistentShares() && event.SharesTotal().Equal(event.Amount)

	amount, err := currency.Convert(s.rates, event.Amount, from, trip.Currency, event.Timestamp)
	if err != nil {
		return fmt.Errorf("converting amount: %w", err)
	}
	event.OriginalAmount = event.Amount
	event.OriginalCurrency = from
	event.Amount = amount

	if len(event.Shares) == 0 {
		return nil
	}
	converted := make(ledger.Shares, len(event.Shares))
	for id, share := range event.Shares {
		c, err := currency.Convert(s.rates, share, from, trip.Currency, event.Timestamp)
		if err != nil {
			return fmt.Errorf("converting share: %w", err)
		}
		converted[id] = c
	}
	event.Shares = converted

	if consistent {
		if diff := event.Amount.Sub(event.SharesTotal()); !diff.IsZero() {
			for _, id := range event.Participants {
				if share, ok := event.Shares[id]; ok {
					event.Shares[id] = share.Add(diff)
					break
				}
			}
		}
	}
	return nil
}

// AddEvent validates a cost event, converts it to the trip currency and saves it
func (s *Service) AddEvent(tripID string, in EventInput) (*ledger.CostEvent, error) {
	trip, err := s.GetTrip(tripID)
	if err != nil {
		return nil, err
	}

	now := s.timeSource.Now()
	event := &ledger.CostEvent{
		ID:           s.idGenerator.Generate(),
		Title:        strings.TrimSpace(in.Title),
		Kind:         in.Kind,
		Visibility:   in.Visibility,
		CreatorID:    in.CreatorID,
		Payer:        in.Payer,
		Amount:       in.Amount,
		Participants: slices.Clone(in.Participants),
		Timestamp:    in.Timestamp,
		ReceiptFile:  in.ReceiptFile,
		ContentType:  in.ContentType,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if len(in.Shares) > 0 {
		event.Shares = make(ledger.Shares, len(in.Shares))
		for id, share := range in.Shares {
			event.Shares[id] = share
		}
	}
	if event.Kind == "" {
		event.Kind = ledger.KindExpense
	}
	if event.Visibility == "" {
		event.Visibility = ledger.VisibilityPublic
	}
	if event.CreatorID == "" {
		event.CreatorID = event.Payer
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = now
	}

	if err := event.Validate(); err != nil {
		return nil, err
	}
	if err := requireMembers(trip, append([]string{event.Payer, event.CreatorID}, event.Participants...)...); err != nil {
		return nil, err
	}

	if from := normalizeCurrency(in.Currency); from != "" && from != trip.Currency {
		if err := s.convertEvent(trip, event, from); err != nil {
			return nil, err
		}
	}

	if !event.HasConsistentShares() {
		// advisory only: the calculator uses shares as given
		slog.Warn("Event shares do not add up to its amount",
			"trip_id", trip.ID,
			"event_id", event.ID,
			"amount", event.Amount.String(),
			"shares_total", event.SharesTotal().String(),
		)
	}

	if err := s.db.SaveEvent(trip.ID, event); err != nil {
		return nil, fmt.Errorf("saving event: %w", err)
	}
	return event, nil
}

// GetEvent retrieves a cost event
func (s *Service) GetEvent(tripID, eventID string) (*ledger.CostEvent, error) {
	event, err := s.db.GetEvent(tripID, eventID)
	if err != nil {
		return nil, fmt.Errorf("getting event: %w", err)
	}
	return event, nil
}

// ListEvents returns the events viewerID may see, newest first
func (s *Service) ListEvents(tripID, viewerID string) ([]*ledger.CostEvent, error) {
	if _, err := s.GetTrip(tripID); err != nil {
		return nil, err
	}
	events, err := s.db.ListEvents(tripID)
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	visible := ledger.VisibleTo(events, viewerID)
	ledger.SortByRecency(visible)
	return visible, nil
}

// DeleteEvent removes a cost event and its receipt file
func (s *Service) DeleteEvent(tripID, eventID string) error {
	event, err := s.db.GetEvent(tripID, eventID)
	if err != nil {
		return fmt.Errorf("getting event for deletion: %w", err)
	}

	if event.ReceiptFile != "" {
		if err := s.storage.Delete(event.ReceiptFile); err != nil {
			// the event is what matters; an orphaned file is harmless
			slog.Warn("Failed to delete receipt file", "filename", event.ReceiptFile, "error", err)
		}
	}

	if err := s.db.DeleteEvent(tripID, eventID); err != nil {
		return fmt.Errorf("deleting event from database: %w", err)
	}
	return nil
}

// ScanReceipt stores a receipt file and scans it into a draft expense paid by
// payerID and split equally among active members. The draft is not saved;
// the member reviews it and submits it through AddEvent.
func (s *Service) ScanReceipt(ctx context.Context, tripID, payerID, filename string, data []byte, contentType string) (*EventInput, error) {
	if s.scanner == nil {
		return nil, ErrScanningDisabled
	}

	trip, err := s.GetTrip(tripID)
	if err != nil {
		return nil, err
	}
	if err := requireMembers(trip, payerID); err != nil {
		return nil, err
	}

	id := s.idGenerator.Generate()
	savedPath, err := s.storage.Save(fmt.Sprintf("%s/%s_%s", trip.ID, id, sanitizeFilename(filename)), data)
	if err != nil {
		return nil, fmt.Errorf("saving file: %w", err)
	}

	receiptData, err := s.scanner.ScanReceipt(ctx, data, contentType)
	if err != nil {
		slog.Error("Failed to scan receipt",
			"trip_id", trip.ID,
			"filename", filename,
			"content_type", contentType,
			"file_size", len(data),
			"error", err,
		)
		if delErr := s.storage.Delete(savedPath); delErr != nil {
			slog.Warn("Failed to clean up receipt file", "filename", savedPath, "error", delErr)
		}
		return nil, fmt.Errorf("scanning receipt: %w", err)
	}

	date, err := time.Parse("2006-01-02", receiptData.Date)
	if err != nil {
		date = s.timeSource.Now()
	}

	code := receiptData.Currency
	if code == "" {
		code = trip.Currency
	}

	return &EventInput{
		Title:        receiptData.Title,
		Kind:         ledger.KindExpense,
		Visibility:   ledger.VisibilityPublic,
		CreatorID:    payerID,
		Payer:        payerID,
		Amount:       receiptData.Amount,
		Currency:     code,
		Participants: trip.ActiveMemberIDs(),
		Timestamp:    date,
		ReceiptFile:  savedPath,
		ContentType:  contentType,
	}, nil
}

// GetEventReceipt retrieves the receipt file attached to an event
func (s *Service) GetEventReceipt(tripID, eventID string) ([]byte, string, error) {
	event, err := s.GetEvent(tripID, eventID)
	if err != nil {
		return nil, "", err
	}
	if event.ReceiptFile == "" {
		return nil, "", fmt.Errorf("receipt for event %s: %w", eventID, ErrNotFound)
	}

	data, err := s.storage.Get(event.ReceiptFile)
	if err != nil {
		return nil, "", fmt.Errorf("getting receipt file: %w", err)
	}
	return data, event.ContentType, nil
}

// Summary computes the viewer's balances and the trip's settlement plan
func (s *Service) Summary(tripID, viewerID string) (*ledger.Summary, error) {
	trip, err := s.GetTrip(tripID)
	if err != nil {
		return nil, err
	}
	if err := requireMembers(trip, viewerID); err != nil {
		return nil, err
	}

	events, err := s.db.ListEvents(tripID)
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}

	summary := ledger.Summarize(events, trip.Roster(), viewerID)
	if len(summary.Inconsistent) > 0 {
		slog.Warn("Balances computed with inconsistent splits",
			"trip_id", trip.ID,
			"event_ids", summary.Inconsistent,
			"imbalance", summary.Total().String(),
		)
	}
	return &summary, nil
}

// SettleTransfer records a suggested transfer as a settlement event
func (s *Service) SettleTransfer(tripID, creatorID string, transfer ledger.Transfer) (*ledger.CostEvent, error) {
	if !transfer.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: transfer amount must be positive", ErrInvalidInput)
	}

	trip, err := s.GetTrip(tripID)
	if err != nil {
		return nil, err
	}
	if creatorID == "" {
		creatorID = transfer.From
	}
	if err := requireMembers(trip, transfer.From, transfer.To, creatorID); err != nil {
		return nil, err
	}

	event := ledger.SettlementFromTransfer(transfer, s.idGenerator.Generate(), creatorID, s.timeSource.Now())
	if err := event.Validate(); err != nil {
		return nil, err
	}
	if err := s.db.SaveEvent(trip.ID, event); err != nil {
		return nil, fmt.Errorf("saving settlement: %w", err)
	}
	slog.Info("Settlement recorded",
		"trip_id", trip.ID,
		"from", transfer.From,
		"to", transfer.To,
		"amount", transfer.Amount.String(),
	)
	return event, nil
}
