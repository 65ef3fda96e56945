// Package chinook is the music store's relational catalog: customers,
// the media catalog, and purchase history, with the lookup queries the
// support tools are built on.
package chinook

import (
	"time"

	"github.com/uptrace/bun"
)

type Customer struct {
	bun.BaseModel `bun:"table:customers,alias:c"`

	CustomerID   int64  `bun:"customer_id,pk,autoincrement"`
	FirstName    string `bun:"first_name,notnull"`
	LastName     string `bun:"last_name,notnull"`
	Email        string `bun:"email,notnull,unique"`
	Phone        string `bun:"phone"`
	City         string `bun:"city"`
	Country      string `bun:"country"`
	SupportRepID int64  `bun:"support_rep_id"`

	SupportRep *Employee `bun:"rel:belongs-to,join:support_rep_id=employee_id"`
}

type Employee struct {
	bun.BaseModel `bun:"table:employees,alias:e"`

	EmployeeID int64  `bun:"employee_id,pk,autoincrement"`
	FirstName  string `bun:"first_name,notnull"`
	LastName   string `bun:"last_name,notnull"`
	Title      string `bun:"title"`
	Email      string `bun:"email"`
	Phone      string `bun:"phone"`
}

type Artist struct {
	bun.BaseModel `bun:"table:artists,alias:ar"`

	ArtistID int64  `bun:"artist_id,pk,autoincrement"`
	Name     string `bun:"name,notnull"`
}

type Album struct {
	bun.BaseModel `bun:"table:albums,alias:al"`

	AlbumID  int64  `bun:"album_id,pk,autoincrement"`
	Title    string `bun:"title,notnull"`
	ArtistID int64  `bun:"artist_id,notnull"`

	Artist *Artist `bun:"rel:belongs-to,join:artist_id=artist_id"`
}

type Genre struct {
	bun.BaseModel `bun:"table:genres,alias:g"`

	GenreID int64  `bun:"genre_id,pk,autoincrement"`
	Name    string `bun:"name,notnull"`
}

type Track struct {
	bun.BaseModel `bun:"table:tracks,alias:t"`

	TrackID   int64   `bun:"track_id,pk,autoincrement"`
	Name      string  `bun:"name,notnull"`
	AlbumID   int64   `bun:"album_id"`
	GenreID   int64   `bun:"genre_id"`
	UnitPrice float64 `bun:"unit_price,notnull"`

	Album *Album `bun:"rel:belongs-to,join:album_id=album_id"`
	Genre *Genre `bun:"rel:belongs-to,join:genre_id=genre_id"`
}

type Invoice struct {
	bun.BaseModel `bun:"table:invoices,alias:i"`

	InvoiceID   int64     `bun:"invoice_id,pk,autoincrement"`
	CustomerID  int64     `bun:"customer_id,notnull"`
	InvoiceDate time.Time `bun:"invoice_date,notnull"`
	Total       float64   `bun:"total,notnull"`

	Customer *Customer      `bun:"rel:belongs-to,join:customer_id=customer_id"`
	Lines    []*InvoiceLine `bun:"rel:has-many,join:invoice_id=invoice_id"`
}

type InvoiceLine struct {
	bun.BaseModel `bun:"table:invoice_lines,alias:il"`

	InvoiceLineID int64   `bun:"invoice_line_id,pk,autoincrement"`
	InvoiceID     int64   `bun:"invoice_id,notnull"`
	TrackID       int64   `bun:"track_id,notnull"`
	UnitPrice     float64 `bun:"unit_price,notnull"`
	Quantity      int     `bun:"quantity,notnull"`

	Track *Track `bun:"rel:belongs-to,join:track_id=track_id"`
}
