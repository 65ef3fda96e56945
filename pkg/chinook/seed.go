package chinook

import (
	"context"
	"fmt"
	"time"
)

// Seed loads the starter catalog into an empty database. It is a
// no-op when customers already exist, so repeated startups are safe.
func (s *Store) Seed(ctx context.Context) error {
	count, err := s.db.NewSelect().Model((*Customer)(nil)).Count(ctx)
	if err != nil {
		return fmt.Errorf("count customers: %w", err)
	}
	if count > 0 {
		return nil
	}

	employees := []*Employee{
		{EmployeeID: 1, FirstName: "Jane", LastName: "Peacock", Title: "Sales Support Agent", Email: "jane@soundvault.example", Phone: "+1 (403) 262-3443"},
		{EmployeeID: 2, FirstName: "Steve", LastName: "Johnson", Title: "Sales Support Agent", Email: "steve@soundvault.example", Phone: "+1 (780) 836-9987"},
	}
	customers := []*Customer{
		{CustomerID: 1, FirstName: "Luis", LastName: "Goncalves", Email: "luisg@embraer.com.br", Phone: "+55 (12) 3923-5555", City: "Sao Jose dos Campos", Country: "Brazil", SupportRepID: 1},
		{CustomerID: 2, FirstName: "Leonie", LastName: "Kohler", Email: "leonekohler@surfeu.de", Phone: "+49 0711 2842222", City: "Stuttgart", Country: "Germany", SupportRepID: 2},
		{CustomerID: 3, FirstName: "Frantisek", LastName: "Wichterlova", Email: "frantisekw@jetbrains.com", Phone: "+420 2 4172 5555", City: "Prague", Country: "Czech Republic", SupportRepID: 1},
	}
	artists := []*Artist{
		{ArtistID: 1, Name: "AC/DC"},
		{ArtistID: 2, Name: "The Rolling Stones"},
		{ArtistID: 3, Name: "Miles Davis"},
		{ArtistID: 4, Name: "Amy Winehouse"},
	}
	albums := []*Album{
		{AlbumID: 1, Title: "Let There Be Rock", ArtistID: 1},
		{AlbumID: 2, Title: "Hot Rocks, 1964-1971 (Disc 1)", ArtistID: 2},
		{AlbumID: 3, Title: "Kind of Blue", ArtistID: 3},
		{AlbumID: 4, Title: "Back to Black", ArtistID: 4},
	}
	genres := []*Genre{
		{GenreID: 1, Name: "Rock"},
		{GenreID: 2, Name: "Jazz"},
		{GenreID: 3, Name: "Blues"},
	}
	tracks := []*Track{
		{TrackID: 1, Name: "Go Down", AlbumID: 1, GenreID: 1, UnitPrice: 0.99},
		{TrackID: 2, Name: "Dog Eat Dog", AlbumID: 1, GenreID: 1, UnitPrice: 0.99},
		{TrackID: 3, Name: "Let There Be Rock", AlbumID: 1, GenreID: 1, UnitPrice: 0.99},
		{TrackID: 4, Name: "Time Is On My Side", AlbumID: 2, GenreID: 1, UnitPrice: 0.99},
		{TrackID: 5, Name: "Paint It Black", AlbumID: 2, GenreID: 1, UnitPrice: 1.29},
		{TrackID: 6, Name: "So What", AlbumID: 3, GenreID: 2, UnitPrice: 0.99},
		{TrackID: 7, Name: "Blue in Green", AlbumID: 3, GenreID: 2, UnitPrice: 0.99},
		{TrackID: 8, Name: "Rehab", AlbumID: 4, GenreID: 3, UnitPrice: 1.29},
		{TrackID: 9, Name: "Back to Black", AlbumID: 4, GenreID: 3, UnitPrice: 0.99},
	}
	invoices := []*Invoice{
		{InvoiceID: 1, CustomerID: 1, InvoiceDate: time.Date(2024, 11, 13, 0, 0, 0, 0, time.UTC), Total: 3.96},
		{InvoiceID: 2, CustomerID: 1, InvoiceDate: time.Date(2025, 2, 11, 0, 0, 0, 0, time.UTC), Total: 2.28},
		{InvoiceID: 3, CustomerID: 2, InvoiceDate: time.Date(2025, 1, 8, 0, 0, 0, 0, time.UTC), Total: 1.98},
	}
	lines := []*InvoiceLine{
		{InvoiceLineID: 1, InvoiceID: 1, TrackID: 1, UnitPrice: 0.99, Quantity: 1},
		{InvoiceLineID: 2, InvoiceID: 1, TrackID: 3, UnitPrice: 0.99, Quantity: 1},
		{InvoiceLineID: 3, InvoiceID: 1, TrackID: 6, UnitPrice: 0.99, Quantity: 2},
		{InvoiceLineID: 4, InvoiceID: 2, TrackID: 5, UnitPrice: 1.29, Quantity: 1},
		{InvoiceLineID: 5, InvoiceID: 2, TrackID: 9, UnitPrice: 0.99, Quantity: 1},
		{InvoiceLineID: 6, InvoiceID: 3, TrackID: 8, UnitPrice: 1.29, Quantity: 1},
		{InvoiceLineID: 7, InvoiceID: 3, TrackID: 7, UnitPrice: 0.99, Quantity: 1},
	}

	batches := []any{&employees, &customers, &artists, &albums, &genres, &tracks, &invoices, &lines}
	for _, batch := range batches {
		if _, err := s.db.NewInsert().Model(batch).Exec(ctx); err != nil {
			return fmt.Errorf("seed catalog: %w", err)
		}
	}
	return nil
}
