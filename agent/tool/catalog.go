// Package tool exposes the data services to the sub-agents as named,
// tag-scoped tools.
package tool

import (
	contractx "github.com/soundvault/support-agent/agent/contract"
)

const (
	ToolAlbumsByArtist = "get_albums_by_artist"
	ToolTracksByArtist = "get_tracks_by_artist"
	ToolSongsByGenre   = "get_songs_by_genre"
	ToolCheckForSongs  = "check_for_songs"

	ToolInvoicesByDate      = "get_invoices_sorted_by_date"
	ToolInvoicesByUnitPrice = "get_invoices_sorted_by_unit_price"
	ToolEmployeeByInvoice   = "get_employee_by_invoice"

	ToolRecommendConcerts = "recommend_concerts"
)

func stringParam(desc string) map[string]any {
	return map[string]any{"type": "string", "description": desc}
}

func specsForTag(tag contractx.SubagentTag) []contractx.ToolSpec {
	switch tag {
	case contractx.TagMusic:
		return []contractx.ToolSpec{
			{
				Name:        ToolAlbumsByArtist,
				Description: "List the albums we carry for an artist.",
				Parameters: map[string]any{
					"type":       "object",
					"properties": map[string]any{"artist": stringParam("Artist name or a fragment of it")},
					"required":   []string{"artist"},
				},
			},
			{
				Name:        ToolTracksByArtist,
				Description: "List the individual tracks we carry for an artist.",
				Parameters: map[string]any{
					"type":       "object",
					"properties": map[string]any{"artist": stringParam("Artist name or a fragment of it")},
					"required":   []string{"artist"},
				},
			},
			{
				Name:        ToolSongsByGenre,
				Description: "List tracks in a genre.",
				Parameters: map[string]any{
					"type":       "object",
					"properties": map[string]any{"genre": stringParam("Genre name, e.g. Rock or Jazz")},
					"required":   []string{"genre"},
				},
			},
			{
				Name:        ToolCheckForSongs,
				Description: "Check whether the store carries songs matching a title.",
				Parameters: map[string]any{
					"type":       "object",
					"properties": map[string]any{"song_title": stringParam("Song title or a fragment of it")},
					"required":   []string{"song_title"},
				},
			},
		}
	case contractx.TagInvoice:
		return []contractx.ToolSpec{
			{
				Name:        ToolInvoicesByDate,
				Description: "List the customer's invoices, most recent first.",
				Parameters:  map[string]any{"type": "object", "properties": map[string]any{}},
			},
			{
				Name:        ToolInvoicesByUnitPrice,
				Description: "List every track the customer bought, most expensive first.",
				Parameters:  map[string]any{"type": "object", "properties": map[string]any{}},
			},
			{
				Name:        ToolEmployeeByInvoice,
				Description: "Look up the support rep responsible for one of the customer's invoices.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"invoice_id": map[string]any{"type": "integer", "description": "Invoice id from the customer's purchase history"},
					},
					"required": []string{"invoice_id"},
				},
			},
		}
	case contractx.TagConcert:
		return []contractx.ToolSpec{
			{
				Name:        ToolRecommendConcerts,
				Description: "Find upcoming concerts matching the customer's taste.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"query":    stringParam("Free-text description of what the customer wants to see"),
						"genre":    stringParam("Restrict to one genre"),
						"location": stringParam("Restrict to a city or country"),
						"max_price": map[string]any{
							"type":        "number",
							"description": "Upper bound on the starting ticket price",
						},
						"only_available": map[string]any{
							"type":        "boolean",
							"description": "Drop sold-out concerts",
						},
					},
					"required": []string{"query"},
				},
			},
		}
	}
	return nil
}
