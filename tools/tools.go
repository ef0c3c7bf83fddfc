package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/giygas/sukl-mcp/documents"
	"github.com/giygas/sukl-mcp/errs"
	"github.com/giygas/sukl-mcp/logging"
	"github.com/giygas/sukl-mcp/lookup"
)

type searchInput struct {
	Query          string `json:"query" jsonschema:"Medicine name or active substance, whole or partial"`
	OnlyAvailable  bool   `json:"only_available,omitempty" jsonschema:"Return only medicines currently supplied to the market"`
	OnlyReimbursed bool   `json:"only_reimbursed,omitempty" jsonschema:"Return only medicines reimbursed by health insurance"`
	Limit          int    `json:"limit,omitempty" jsonschema:"Maximum number of results from 1 to 100, default 20"`
	Offset         int    `json:"offset,omitempty" jsonschema:"Number of results to skip, default 0"`
	UseFuzzy       *bool  `json:"use_fuzzy,omitempty" jsonschema:"Tolerate typos with fuzzy matching, default true"`
}

type codeInput struct {
	SuklCode string `json:"sukl_code" jsonschema:"SÚKL code of the medicine, up to 7 digits"`
}

type availabilityInput struct {
	SuklCode            string `json:"sukl_code" jsonschema:"SÚKL code of the medicine, up to 7 digits"`
	IncludeAlternatives *bool  `json:"include_alternatives,omitempty" jsonschema:"Suggest available replacements, default true"`
	Limit               int    `json:"limit,omitempty" jsonschema:"Maximum number of alternatives from 1 to 10, default 5"`
}

type pharmacyInput struct {
	City             string `json:"city,omitempty" jsonschema:"City name or part of it"`
	PostalCode       string `json:"postal_code,omitempty" jsonschema:"Postal code (PSČ), spaces are ignored"`
	Has24hService    bool   `json:"has_24h_service,omitempty" jsonschema:"Only pharmacies with emergency service"`
	HasInternetSales bool   `json:"has_internet_sales,omitempty" jsonschema:"Only pharmacies selling online"`
	Limit            int    `json:"limit,omitempty" jsonschema:"Maximum number of pharmacies from 1 to 100, default 20"`
}

type atcInput struct {
	ATCCode string `json:"atc_code" jsonschema:"ATC code or prefix, for example N02 or N02BE01"`
}

type batchInput struct {
	SuklCodes []string `json:"sukl_codes" jsonschema:"SÚKL codes to check, at most 100"`
}

var readOnly = &mcp.ToolAnnotations{ReadOnlyHint: true, IdempotentHint: true}

func registerTools(s *mcp.Server, svc *lookup.Service) {
	mcp.AddTool(s, &mcp.Tool{
		Name:        "search_medicine",
		Description: "Vyhledá léčivé přípravky v databázi SÚKL podle názvu nebo účinné látky.",
		Annotations: readOnly,
	}, func(ctx context.Context, req *mcp.CallToolRequest, in searchInput) (*mcp.CallToolResult, any, error) {
		useFuzzy := true
		if in.UseFuzzy != nil {
			useFuzzy = *in.UseFuzzy
		}
		resp, err := svc.Search(ctx, lookup.SearchParams{
			Query:          in.Query,
			OnlyAvailable:  in.OnlyAvailable,
			OnlyReimbursed: in.OnlyReimbursed,
			Limit:          in.Limit,
			Offset:         in.Offset,
			UseFuzzy:       useFuzzy,
		})
		return reply(ctx, resp, err)
	})

	mcp.AddTool(s, &mcp.Tool{
		Name:        "get_medicine_details",
		Description: "Vrátí detailní informace o léčivém přípravku podle kódu SÚKL včetně ceny a úhrady.",
		Annotations: readOnly,
	}, func(ctx context.Context, req *mcp.CallToolRequest, in codeInput) (*mcp.CallToolResult, any, error) {
		detail, err := svc.GetMedicineDetail(ctx, in.SuklCode)
		return reply(ctx, detail, err)
	})

	mcp.AddTool(s, &mcp.Tool{
		Name:        "get_pil_content",
		Description: "Vrátí text příbalové informace (PIL) pro pacienty.",
		Annotations: readOnly,
	}, func(ctx context.Context, req *mcp.CallToolRequest, in codeInput) (*mcp.CallToolResult, any, error) {
		doc, err := svc.GetDocument(ctx, documents.KindPIL, in.SuklCode)
		return reply(ctx, doc, err)
	})

	mcp.AddTool(s, &mcp.Tool{
		Name:        "get_spc_content",
		Description: "Vrátí text souhrnu údajů o přípravku (SPC) pro zdravotnické pracovníky.",
		Annotations: readOnly,
	}, func(ctx context.Context, req *mcp.CallToolRequest, in codeInput) (*mcp.CallToolResult, any, error) {
		doc, err := svc.GetDocument(ctx, documents.KindSPC, in.SuklCode)
		return reply(ctx, doc, err)
	})

	mcp.AddTool(s, &mcp.Tool{
		Name:        "check_availability",
		Description: "Ověří dostupnost léčiva na trhu a navrhne dostupné alternativy.",
		Annotations: readOnly,
	}, func(ctx context.Context, req *mcp.CallToolRequest, in availabilityInput) (*mcp.CallToolResult, any, error) {
		include := true
		if in.IncludeAlternatives != nil {
			include = *in.IncludeAlternatives
		}
		info, err := svc.CheckAvailability(ctx, in.SuklCode, include, in.Limit)
		return reply(ctx, info, err)
	})

	mcp.AddTool(s, &mcp.Tool{
		Name:        "get_reimbursement",
		Description: "Vrátí cenu, úhradu zdravotní pojišťovnou a doplatek pacienta.",
		Annotations: readOnly,
	}, func(ctx context.Context, req *mcp.CallToolRequest, in codeInput) (*mcp.CallToolResult, any, error) {
		info, err := svc.GetReimbursement(ctx, in.SuklCode)
		return reply(ctx, info, err)
	})

	mcp.AddTool(s, &mcp.Tool{
		Name:        "find_pharmacies",
		Description: "Vyhledá lékárny podle města, PSČ, pohotovostní služby nebo internetového prodeje.",
		Annotations: readOnly,
	}, func(ctx context.Context, req *mcp.CallToolRequest, in pharmacyInput) (*mcp.CallToolResult, any, error) {
		result, err := svc.FindPharmacies(ctx, lookup.PharmacyQuery{
			City:             in.City,
			PostalCode:       in.PostalCode,
			Has24hService:    in.Has24hService,
			HasInternetSales: in.HasInternetSales,
			Limit:            in.Limit,
		})
		return reply(ctx, result, err)
	})

	mcp.AddTool(s, &mcp.Tool{
		Name:        "get_atc_info",
		Description: "Vrátí informace o skupině anatomicko-terapeuticko-chemické klasifikace (ATC) a její podskupiny.",
		Annotations: readOnly,
	}, func(ctx context.Context, req *mcp.CallToolRequest, in atcInput) (*mcp.CallToolResult, any, error) {
		info, err := svc.GetATCInfo(ctx, in.ATCCode)
		return reply(ctx, info, err)
	})

	mcp.AddTool(s, &mcp.Tool{
		Name:        "batch_check_availability",
		Description: "Ověří dostupnost až 100 léčiv najednou.",
		Annotations: readOnly,
	}, func(ctx context.Context, req *mcp.CallToolRequest, in batchInput) (*mcp.CallToolResult, any, error) {
		result, err := svc.BatchCheckAvailability(ctx, in.SuklCodes)
		return reply(ctx, result, err)
	})
}

// reply turns a lookup outcome into a tool result. Lookup errors become
// error results visible to the model rather than protocol errors.
func reply(ctx context.Context, out any, err error) (*mcp.CallToolResult, any, error) {
	if err == nil {
		return nil, out, nil
	}
	return errorResult(ctx, err), nil, nil
}

func errorResult(ctx context.Context, err error) *mcp.CallToolResult {
	var message string
	switch {
	case errs.IsValidation(err):
		message = err.Error()
	case errors.Is(err, errs.ErrNotFound):
		message = fmt.Sprintf("Nenalezeno: %v", err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		message = "Požadavek byl zrušen nebo vypršel časový limit."
	default:
		logging.Error("Tool lookup failed", "request_id", RequestID(ctx), "error", err)
		message = "Interní chyba serveru: data nejsou dostupná."
	}

	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: message}},
	}
}
