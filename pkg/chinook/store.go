package chinook

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	contractx "github.com/soundvault/support-agent/agent/contract"
)

// Store wraps the catalog database with the queries the support tools
// need.
type Store struct {
	db *bun.DB
}

// Open connects to the catalog database. An empty dsn opens a shared
// in-memory database, which suits tests and local runs.
func Open(dsn string) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = "file::memory:?cache=shared"
	}
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open catalog database: %w", err)
	}
	// One connection keeps in-memory databases coherent and sidesteps
	// sqlite write locking.
	sqldb.SetMaxOpenConns(1)
	return NewStore(bun.NewDB(sqldb, sqlitedialect.New())), nil
}

func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

func (s *Store) DB() *bun.DB { return s.db }

func (s *Store) Close() error { return s.db.Close() }

// CreateSchema creates all catalog tables if they do not exist yet.
func (s *Store) CreateSchema(ctx context.Context) error {
	models := []any{
		(*Employee)(nil),
		(*Customer)(nil),
		(*Artist)(nil),
		(*Album)(nil),
		(*Genre)(nil),
		(*Track)(nil),
		(*Invoice)(nil),
		(*InvoiceLine)(nil),
	}
	for _, model := range models {
		if _, err := s.db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create catalog schema: %w", err)
		}
	}
	return nil
}

var _ contractx.CustomerDirectory = (*Store)(nil)

// FindCustomer resolves a numeric id, email, or phone number to a
// customer id. Phone numbers match on digits only, so formatting
// differences between what the customer typed and what is on file do
// not matter.
func (s *Store) FindCustomer(ctx context.Context, candidate string) (int64, error) {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		return 0, contractx.ErrCustomerNotFound
	}

	var customer Customer
	switch {
	case isAllDigits(candidate):
		err := s.db.NewSelect().Model(&customer).Where("c.customer_id = ?", candidate).Scan(ctx)
		return customerOrNotFound(customer, err)
	case strings.Contains(candidate, "@"):
		err := s.db.NewSelect().Model(&customer).Where("lower(c.email) = lower(?)", candidate).Scan(ctx)
		return customerOrNotFound(customer, err)
	default:
		return s.findByPhone(ctx, candidate)
	}
}

func (s *Store) findByPhone(ctx context.Context, candidate string) (int64, error) {
	want := digitsOnly(candidate)
	if len(want) < 7 {
		return 0, contractx.ErrCustomerNotFound
	}

	var customers []Customer
	if err := s.db.NewSelect().Model(&customers).Where("c.phone <> ''").Scan(ctx); err != nil {
		return 0, fmt.Errorf("list customer phones: %w", err)
	}
	for _, c := range customers {
		if digitsOnly(c.Phone) == want {
			return c.CustomerID, nil
		}
	}
	return 0, contractx.ErrCustomerNotFound
}

func customerOrNotFound(customer Customer, err error) (int64, error) {
	if errors.Is(err, sql.ErrNoRows) {
		return 0, contractx.ErrCustomerNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("customer lookup: %w", err)
	}
	return customer.CustomerID, nil
}

// AlbumSummary is one row of an album catalog answer.
type AlbumSummary struct {
	Album  string `json:"album"`
	Artist string `json:"artist"`
}

// AlbumsByArtist lists albums whose artist name contains the query,
// case-insensitively.
func (s *Store) AlbumsByArtist(ctx context.Context, artist string) ([]AlbumSummary, error) {
	var out []AlbumSummary
	err := s.db.NewSelect().
		TableExpr("albums AS al").
		ColumnExpr("al.title AS album, ar.name AS artist").
		Join("JOIN artists AS ar ON ar.artist_id = al.artist_id").
		Where("lower(ar.name) LIKE lower(?)", contains(artist)).
		OrderExpr("al.title ASC").
		Scan(ctx, &out)
	if err != nil {
		return nil, fmt.Errorf("albums by artist: %w", err)
	}
	return out, nil
}

// TrackSummary is one row of a track catalog answer.
type TrackSummary struct {
	Track     string  `json:"track"`
	Album     string  `json:"album,omitempty"`
	Artist    string  `json:"artist,omitempty"`
	Genre     string  `json:"genre,omitempty"`
	UnitPrice float64 `json:"unit_price"`
}

// TracksByArtist lists tracks whose artist name contains the query.
func (s *Store) TracksByArtist(ctx context.Context, artist string) ([]TrackSummary, error) {
	out, err := s.searchTrackRows(ctx, "lower(ar.name) LIKE lower(?)", contains(artist))
	if err != nil {
		return nil, fmt.Errorf("tracks by artist: %w", err)
	}
	return out, nil
}

// TracksByGenre lists tracks whose genre name contains the query.
func (s *Store) TracksByGenre(ctx context.Context, genre string) ([]TrackSummary, error) {
	out, err := s.searchTrackRows(ctx, "lower(g.name) LIKE lower(?)", contains(genre))
	if err != nil {
		return nil, fmt.Errorf("tracks by genre: %w", err)
	}
	return out, nil
}

// SearchTracks checks whether the store carries songs matching a title
// fragment.
func (s *Store) SearchTracks(ctx context.Context, title string) ([]TrackSummary, error) {
	out, err := s.searchTrackRows(ctx, "lower(t.name) LIKE lower(?)", contains(title))
	if err != nil {
		return nil, fmt.Errorf("search tracks: %w", err)
	}
	return out, nil
}

func (s *Store) searchTrackRows(ctx context.Context, cond string, arg any) ([]TrackSummary, error) {
	var out []TrackSummary
	err := s.db.NewSelect().
		TableExpr("tracks AS t").
		ColumnExpr("t.name AS track, al.title AS album, ar.name AS artist, g.name AS genre, t.unit_price AS unit_price").
		Join("LEFT JOIN albums AS al ON al.album_id = t.album_id").
		Join("LEFT JOIN artists AS ar ON ar.artist_id = al.artist_id").
		Join("LEFT JOIN genres AS g ON g.genre_id = t.genre_id").
		Where(cond, arg).
		OrderExpr("t.name ASC").
		Scan(ctx, &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// InvoiceSummary is one row of a purchase history answer.
type InvoiceSummary struct {
	InvoiceID int64     `json:"invoice_id"`
	Date      time.Time `json:"date"`
	Total     float64   `json:"total"`
}

// InvoicesByDate lists a customer's invoices, most recent first.
func (s *Store) InvoicesByDate(ctx context.Context, customerID int64) ([]InvoiceSummary, error) {
	var out []InvoiceSummary
	err := s.db.NewSelect().
		TableExpr("invoices AS i").
		ColumnExpr("i.invoice_id AS invoice_id, i.invoice_date AS date, i.total AS total").
		Where("i.customer_id = ?", customerID).
		OrderExpr("i.invoice_date DESC").
		Scan(ctx, &out)
	if err != nil {
		return nil, fmt.Errorf("invoices by date: %w", err)
	}
	return out, nil
}

// LineItem is one purchased track on an invoice.
type LineItem struct {
	InvoiceID int64   `json:"invoice_id"`
	Track     string  `json:"track"`
	UnitPrice float64 `json:"unit_price"`
	Quantity  int     `json:"quantity"`
}

// LineItemsByUnitPrice lists every track a customer bought, most
// expensive first.
func (s *Store) LineItemsByUnitPrice(ctx context.Context, customerID int64) ([]LineItem, error) {
	var out []LineItem
	err := s.db.NewSelect().
		TableExpr("invoice_lines AS il").
		ColumnExpr("il.invoice_id AS invoice_id, t.name AS track, il.unit_price AS unit_price, il.quantity AS quantity").
		Join("JOIN invoices AS i ON i.invoice_id = il.invoice_id").
		Join("JOIN tracks AS t ON t.track_id = il.track_id").
		Where("i.customer_id = ?", customerID).
		OrderExpr("il.unit_price DESC, t.name ASC").
		Scan(ctx, &out)
	if err != nil {
		return nil, fmt.Errorf("line items by unit price: %w", err)
	}
	return out, nil
}

// EmployeeSummary identifies the support rep tied to a purchase.
type EmployeeSummary struct {
	Name  string `json:"name"`
	Title string `json:"title,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// EmployeeByInvoice returns the support rep of the customer who owns
// the invoice. The customer id scopes the lookup so a customer cannot
// probe another customer's invoices.
func (s *Store) EmployeeByInvoice(ctx context.Context, invoiceID int64, customerID int64) (EmployeeSummary, error) {
	var rep Employee
	err := s.db.NewSelect().
		Model(&rep).
		Join("JOIN customers AS c ON c.support_rep_id = e.employee_id").
		Join("JOIN invoices AS i ON i.customer_id = c.customer_id").
		Where("i.invoice_id = ?", invoiceID).
		Where("i.customer_id = ?", customerID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return EmployeeSummary{}, fmt.Errorf("%w: invoice %d", contractx.ErrCustomerNotFound, invoiceID)
	}
	if err != nil {
		return EmployeeSummary{}, fmt.Errorf("employee by invoice: %w", err)
	}

	return EmployeeSummary{
		Name:  rep.FirstName + " " + rep.LastName,
		Title: rep.Title,
		Email: rep.Email,
		Phone: rep.Phone,
	}, nil
}

func contains(q string) string {
	return "%" + strings.TrimSpace(q) + "%"
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
