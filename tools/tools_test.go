package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giygas/sukl-mcp/data"
	"github.com/giygas/sukl-mcp/lookup"
	"github.com/giygas/sukl-mcp/opendata/entities"
	"github.com/giygas/sukl-mcp/validation"
)

func price(v float64) *float64 { return &v }

type stubHealth struct{}

func (stubHealth) HealthCheck(ctx context.Context) (string, map[string]any, int) {
	return "healthy", map[string]any{"medicines": 3}, http.StatusOK
}

func (stubHealth) CalculateNextUpdate() time.Time { return time.Time{} }

func testService() *lookup.Service {
	store := data.NewDataContainer()
	store.UpdateData(&entities.Dataset{
		Medicines: []entities.Medicine{
			{Code: "0000001", Name: "PARALEN 500MG", Form: "TBL NOB", Strength: "500MG", ATC: "N02BE01", Availability: entities.AvailabilityAvailable},
			{Code: "0000003", Name: "PANADOL 500MG", Form: "TBL NOB", Strength: "500MG", ATC: "N02BE01", Availability: entities.AvailabilityUnavailable},
			{Code: "0000004", Name: "IBALGIN 400", Form: "TBL FLM", Strength: "400MG", ATC: "M01AE01", Availability: entities.AvailabilityAvailable},
		},
		Substances: []entities.Substance{{Code: "100", Name: "PARACETAMOLUM"}},
		Compositions: []entities.Composition{
			{MedicineCode: "0000001", SubstanceCode: "100"},
			{MedicineCode: "0000003", SubstanceCode: "100"},
		},
		ATCGroups: []entities.ATCGroup{
			{Code: "M", Name: "SVALOVÁ A KOSTERNÍ SOUSTAVA"},
			{Code: "N", Name: "NERVOVÝ SYSTÉM"},
			{Code: "N02", Name: "ANALGETIKA"},
			{Code: "N02B", Name: "JINÁ ANALGETIKA A ANTIPYRETIKA"},
			{Code: "N02BE", Name: "ANILIDY"},
			{Code: "N02BE01", Name: "PARACETAMOL", NameEN: "PARACETAMOL"},
		},
		Prices: []entities.PriceRecord{
			{Code: "0000001", MaxPrice: price(50), Reimbursement: price(30)},
		},
		Pharmacies: []entities.Pharmacy{
			{ID: "L1", Name: "LÉKÁRNA U ANDĚLA", City: "Praha 5", Street: "Nádražní 1", PostalCode: "15000", Region: "Hlavní město Praha", Has24hService: true},
			{ID: "L2", Name: "LÉKÁRNA BRNO", City: "Brno", PostalCode: "60200", Region: "Jihomoravský kraj"},
		},
	}, nil)
	return lookup.NewService(store, validation.NewDataValidator(), lookup.WithVersion("test"))
}

// connect starts the server on an in-memory transport and returns a client session.
func connect(t *testing.T) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()

	server := NewServer(testService(), stubHealth{}, Options{})
	serverTransport, clientTransport := mcp.NewInMemoryTransports()

	serverSession, err := server.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { serverSession.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { session.Close() })
	return session
}

func callTool(t *testing.T, session *mcp.ClientSession, name string, args map[string]any) (*mcp.CallToolResult, map[string]any) {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	require.NotEmpty(t, result.Content)

	text, ok := result.Content[0].(*mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", result.Content[0])
	if result.IsError {
		return result, map[string]any{"error": text.Text}
	}

	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(text.Text), &payload))
	return result, payload
}

func readResource(t *testing.T, session *mcp.ClientSession, uri string) map[string]any {
	t.Helper()
	result, err := session.ReadResource(context.Background(), &mcp.ReadResourceParams{URI: uri})
	require.NoError(t, err)
	require.Len(t, result.Contents, 1)
	assert.Equal(t, "application/json", result.Contents[0].MIMEType)

	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(result.Contents[0].Text), &payload))
	return payload
}

func TestListTools(t *testing.T) {
	session := connect(t)

	res, err := session.ListTools(context.Background(), nil)
	require.NoError(t, err)

	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
		require.NotNil(t, tool.Annotations)
		assert.True(t, tool.Annotations.ReadOnlyHint, tool.Name)
	}
	assert.ElementsMatch(t, []string{
		"search_medicine",
		"get_medicine_details",
		"get_pil_content",
		"get_spc_content",
		"check_availability",
		"get_reimbursement",
		"find_pharmacies",
		"get_atc_info",
		"batch_check_availability",
	}, names)
}

func TestSearchMedicineTool(t *testing.T) {
	session := connect(t)

	result, payload := callTool(t, session, "search_medicine", map[string]any{"query": "paracetamolum"})
	require.False(t, result.IsError, payload["error"])

	assert.Equal(t, "csv_substance", payload["match_type"])
	assert.Equal(t, float64(2), payload["total_results"])
	results := payload["results"].([]any)
	first := results[0].(map[string]any)
	assert.Equal(t, "0000001", first["sukl_code"])
	assert.Equal(t, float64(50), first["max_price"])
	assert.Equal(t, true, first["has_reimbursement"])

	// Without price data reimbursement stays unknown
	second := results[1].(map[string]any)
	assert.Nil(t, second["has_reimbursement"])
}

func TestSearchMedicineToolValidation(t *testing.T) {
	session := connect(t)

	result, payload := callTool(t, session, "search_medicine", map[string]any{"query": "  "})
	assert.True(t, result.IsError)
	assert.Contains(t, payload["error"], "query")

	result, _ = callTool(t, session, "search_medicine", map[string]any{"query": "paralen", "limit": 500})
	assert.True(t, result.IsError)
}

func TestMedicineDetailTool(t *testing.T) {
	session := connect(t)

	result, payload := callTool(t, session, "get_medicine_details", map[string]any{"sukl_code": "1"})
	require.False(t, result.IsError, payload["error"])
	assert.Equal(t, "PARALEN 500MG", payload["name"])
	assert.Equal(t, "PARACETAMOL", payload["atc_name"])
	assert.Equal(t, true, payload["is_available"])

	result, payload = callTool(t, session, "get_medicine_details", map[string]any{"sukl_code": "9999999"})
	assert.True(t, result.IsError)
	assert.True(t, strings.HasPrefix(payload["error"].(string), "Nenalezeno"))
}

func TestCheckAvailabilityTool(t *testing.T) {
	session := connect(t)

	result, payload := callTool(t, session, "check_availability", map[string]any{"sukl_code": "3"})
	require.False(t, result.IsError, payload["error"])
	assert.Equal(t, false, payload["is_available"])
	assert.Equal(t, true, payload["alternatives_available"])
	assert.Contains(t, payload["recommendation"], "PARALEN 500MG")

	result, payload = callTool(t, session, "check_availability", map[string]any{"sukl_code": "3", "include_alternatives": false})
	require.False(t, result.IsError)
	assert.Empty(t, payload["alternatives"])
}

func TestBatchAndPharmacyTools(t *testing.T) {
	session := connect(t)

	result, payload := callTool(t, session, "batch_check_availability", map[string]any{"sukl_codes": []string{"1", "3"}})
	require.False(t, result.IsError, payload["error"])
	assert.Equal(t, float64(2), payload["total"])
	assert.Equal(t, float64(1), payload["available"])

	result, payload = callTool(t, session, "find_pharmacies", map[string]any{"city": "praha", "has_24h_service": true})
	require.False(t, result.IsError, payload["error"])
	assert.Equal(t, float64(1), payload["total"])
}

func TestATCInfoTool(t *testing.T) {
	session := connect(t)

	result, payload := callTool(t, session, "get_atc_info", map[string]any{"atc_code": "N02"})
	require.False(t, result.IsError, payload["error"])
	assert.Equal(t, "ANALGETIKA", payload["name"])
	assert.Equal(t, float64(3), payload["total_children"])
}

func TestDocumentToolFallsBackToURL(t *testing.T) {
	session := connect(t)

	// No extractor configured: the URL is returned instead of the text
	result, payload := callTool(t, session, "get_pil_content", map[string]any{"sukl_code": "1"})
	require.False(t, result.IsError, payload["error"])
	assert.Equal(t, "https://prehledy.sukl.cz/pil/0000001.pdf", payload["document_url"])
	assert.Contains(t, payload["full_text"], "https://prehledy.sukl.cz/pil/0000001.pdf")
}

func TestResources(t *testing.T) {
	session := connect(t)

	health := readResource(t, session, "sukl://health")
	assert.Equal(t, "healthy", health["status"])

	stats := readResource(t, session, "sukl://statistics")
	assert.Equal(t, float64(3), stats["total_medicines"])
	assert.Equal(t, "test", stats["server_version"])

	top := readResource(t, session, "sukl://atc-groups/top-level")
	assert.Equal(t, float64(2), top["total"])
	groups := top["groups"].([]any)
	assert.Equal(t, "sukl://atc/M", groups[0].(map[string]any)["uri"])

	level := readResource(t, session, "sukl://atc/level/5")
	assert.Equal(t, float64(1), level["total"])

	node := readResource(t, session, "sukl://atc/N02B")
	assert.Equal(t, "N02", node["parent"])
	assert.Equal(t, "sukl://atc/N02", node["uri_parent"])
	assert.Equal(t, []any{"sukl://atc/N02BE"}, node["uri_children"])

	missing := readResource(t, session, "sukl://atc/X99")
	assert.Equal(t, "X99", missing["code"])
	assert.NotEmpty(t, missing["error"])

	tree := readResource(t, session, "sukl://atc/tree/N02")
	assert.Equal(t, float64(4), tree["total_descendants"])

	regions := readResource(t, session, "sukl://pharmacies/regions")
	assert.Equal(t, []any{"Hlavní město Praha", "Jihomoravský kraj"}, regions["regions"])

	docs := readResource(t, session, "sukl://documents/1/availability")
	pil := docs["documents"].(map[string]any)["pil"].(map[string]any)
	assert.Equal(t, "https://prehledy.sukl.cz/pil/0000001.pdf", pil["url"])
}

func TestResourceLevelOutOfRange(t *testing.T) {
	session := connect(t)

	_, err := session.ReadResource(context.Background(), &mcp.ReadResourceParams{URI: "sukl://atc/level/9"})
	assert.Error(t, err)
}

func TestPrompts(t *testing.T) {
	session := connect(t)

	res, err := session.GetPrompt(context.Background(), &mcp.GetPromptParams{
		Name:      "compare_medicines",
		Arguments: map[string]string{"medicine1": "Paralen", "medicine2": "Panadol"},
	})
	require.NoError(t, err)
	require.Len(t, res.Messages, 1)
	text := res.Messages[0].Content.(*mcp.TextContent).Text
	assert.True(t, strings.HasPrefix(text, `Porovnej léčiva "Paralen" a "Panadol".`))

	res, err = session.GetPrompt(context.Background(), &mcp.GetPromptParams{
		Name:      "find_alternative",
		Arguments: map[string]string{"medicine_name": "Nurofen"},
	})
	require.NoError(t, err)
	assert.Contains(t, res.Messages[0].Content.(*mcp.TextContent).Text, "DODAVKY = A")
}

func TestCallLimiterPerTool(t *testing.T) {
	l := newCallLimiter(50, 0)

	assert.Same(t, l.get("search_medicine"), l.get("search_medicine"))
	assert.NotSame(t, l.get("search_medicine"), l.get("get_atc_info"))
	assert.Equal(t, 50, l.get("search_medicine").Burst())
}

func TestTemplateParam(t *testing.T) {
	tests := []struct {
		uri     string
		prefix  string
		want    string
		wantErr bool
	}{
		{"sukl://atc/N02", "sukl://atc/", "N02", false},
		{"sukl://pharmacies/region/Hlavn%C3%AD%20m%C4%9Bsto", "sukl://pharmacies/region/", "Hlavní město", false},
		{"sukl://atc/", "sukl://atc/", "", true},
		{"sukl://atc/a/b", "sukl://atc/", "", true},
		{"sukl://other/N02", "sukl://atc/", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			got, err := templateParam(tt.uri, tt.prefix)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
