package tool

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	contractx "github.com/soundvault/support-agent/agent/contract"
	"github.com/soundvault/support-agent/pkg/chinook"
	"github.com/soundvault/support-agent/pkg/concerts"
)

// Gateway executes tool calls against the catalog database and the
// concert index. Failures are folded into the result text so the
// model can recover in-turn instead of the whole graph failing.
type Gateway struct {
	catalog *chinook.Store
	events  *concerts.Index
}

var _ contractx.ToolGateway = (*Gateway)(nil)

func NewGateway(catalog *chinook.Store, events *concerts.Index) (*Gateway, error) {
	if catalog == nil {
		return nil, errors.New("catalog store is required")
	}
	if events == nil {
		return nil, errors.New("concert index is required")
	}
	return &Gateway{catalog: catalog, events: events}, nil
}

func (g *Gateway) Specs(tag contractx.SubagentTag) []contractx.ToolSpec {
	return specsForTag(tag)
}

func (g *Gateway) Execute(ctx context.Context, tag contractx.SubagentTag, customerID int64, call contractx.ToolCall) contractx.ToolResult {
	if !allowed(tag, call.Name) {
		return contractx.ToolResult{
			Tool:  call.Name,
			Error: fmt.Sprintf("tool %s is not available to the %s agent", call.Name, tag),
		}
	}

	result, err := g.execute(ctx, customerID, call)
	if err != nil {
		return contractx.ToolResult{Tool: call.Name, Error: err.Error()}
	}
	return contractx.ToolResult{Tool: call.Name, Result: result}
}

func allowed(tag contractx.SubagentTag, name string) bool {
	for _, spec := range specsForTag(tag) {
		if spec.Name == name {
			return true
		}
	}
	return false
}

func (g *Gateway) execute(ctx context.Context, customerID int64, call contractx.ToolCall) (any, error) {
	switch call.Name {
	case ToolAlbumsByArtist:
		artist, err := stringArg(call.Args, "artist")
		if err != nil {
			return nil, err
		}
		return g.catalog.AlbumsByArtist(ctx, artist)

	case ToolTracksByArtist:
		artist, err := stringArg(call.Args, "artist")
		if err != nil {
			return nil, err
		}
		return g.catalog.TracksByArtist(ctx, artist)

	case ToolSongsByGenre:
		genre, err := stringArg(call.Args, "genre")
		if err != nil {
			return nil, err
		}
		return g.catalog.TracksByGenre(ctx, genre)

	case ToolCheckForSongs:
		title, err := stringArg(call.Args, "song_title")
		if err != nil {
			return nil, err
		}
		return g.catalog.SearchTracks(ctx, title)

	case ToolInvoicesByDate:
		return g.catalog.InvoicesByDate(ctx, customerID)

	case ToolInvoicesByUnitPrice:
		return g.catalog.LineItemsByUnitPrice(ctx, customerID)

	case ToolEmployeeByInvoice:
		invoiceID, err := intArg(call.Args, "invoice_id")
		if err != nil {
			return nil, err
		}
		return g.catalog.EmployeeByInvoice(ctx, invoiceID, customerID)

	case ToolRecommendConcerts:
		query, err := stringArg(call.Args, "query")
		if err != nil {
			return nil, err
		}
		filter := concerts.Filter{
			Genre:         optionalString(call.Args, "genre"),
			Location:      optionalString(call.Args, "location"),
			OnlyAvailable: optionalBool(call.Args, "only_available"),
		}
		if price, ok := optionalFloat(call.Args, "max_price"); ok {
			filter.MaxPrice = &price
		}
		return g.events.Search(ctx, query, filter, 5)

	default:
		return nil, fmt.Errorf("unknown tool %s", call.Name)
	}
}

func stringArg(args map[string]any, key string) (string, error) {
	v := optionalString(args, key)
	if v == "" {
		return "", fmt.Errorf("argument %q is required", key)
	}
	return v, nil
}

func optionalString(args map[string]any, key string) string {
	if s, ok := args[key].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

func optionalBool(args map[string]any, key string) bool {
	b, _ := args[key].(bool)
	return b
}

// optionalFloat accepts both JSON numbers and numeric strings; models
// are sloppy about which one they emit.
func optionalFloat(args map[string]any, key string) (float64, bool) {
	switch v := args[key].(type) {
	case float64:
		return v, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

func intArg(args map[string]any, key string) (int64, error) {
	f, ok := optionalFloat(args, key)
	if !ok {
		return 0, fmt.Errorf("argument %q must be a number", key)
	}
	return int64(f), nil
}
