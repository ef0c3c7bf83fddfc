package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/giygas/sukl-mcp/errs"
	"github.com/giygas/sukl-mcp/interfaces"
	"github.com/giygas/sukl-mcp/lookup"
	"github.com/giygas/sukl-mcp/opendata/entities"
)

const (
	uriScheme      = "sukl://"
	jsonMIME       = "application/json"
	maxNodeURIs    = 5
	maxNodeListing = 20
)

func atcURI(code string) string {
	return uriScheme + "atc/" + code
}

// templateParam returns the last path segment of uri after prefix.
func templateParam(uri, prefix string) (string, error) {
	raw, ok := strings.CutPrefix(uri, prefix)
	if !ok || raw == "" || strings.Contains(raw, "/") {
		return "", fmt.Errorf("invalid resource URI %q", uri)
	}
	value, err := url.PathUnescape(raw)
	if err != nil {
		return "", fmt.Errorf("invalid resource URI %q: %w", uri, err)
	}
	return value, nil
}

func jsonResource(uri string, payload any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", uri, err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{URI: uri, MIMEType: jsonMIME, Text: string(data)}},
	}, nil
}

type atcEntry struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	NameEN string `json:"name_en,omitempty"`
	Level  int    `json:"level,omitempty"`
	URI    string `json:"uri,omitempty"`
}

func registerResources(s *mcp.Server, svc *lookup.Service, health interfaces.HealthChecker) {
	s.AddResource(&mcp.Resource{
		URI:         uriScheme + "health",
		Name:        "health",
		Description: "Stav serveru a zdrojů dat",
		MIMEType:    jsonMIME,
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		status, details, _ := health.HealthCheck(ctx)
		payload := map[string]any{"status": status}
		for k, v := range details {
			payload[k] = v
		}
		return jsonResource(req.Params.URI, payload)
	})

	s.AddResource(&mcp.Resource{
		URI:         uriScheme + "statistics",
		Name:        "statistics",
		Description: "Souhrnné statistiky databáze léčiv",
		MIMEType:    jsonMIME,
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		stats, err := svc.Statistics(ctx)
		if err != nil {
			return nil, err
		}
		return jsonResource(req.Params.URI, stats)
	})

	s.AddResource(&mcp.Resource{
		URI:         uriScheme + "statistics/detailed",
		Name:        "statistics-detailed",
		Description: "Podrobné statistiky tabulek a data aktualizace",
		MIMEType:    jsonMIME,
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		stats, err := svc.DetailedStatistics(ctx)
		if err != nil {
			return nil, err
		}
		return jsonResource(req.Params.URI, stats)
	})

	s.AddResource(&mcp.Resource{
		URI:         uriScheme + "atc-groups/top-level",
		Name:        "atc-top-level",
		Description: "Hlavní ATC skupiny (1. úroveň)",
		MIMEType:    jsonMIME,
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		groups, err := svc.TopLevelATC(ctx)
		if err != nil {
			return nil, err
		}
		entries := make([]atcEntry, len(groups))
		for i, g := range groups {
			entries[i] = atcEntry{Code: g.Code, Name: g.Name, URI: atcURI(g.Code)}
		}
		return jsonResource(req.Params.URI, map[string]any{
			"description": "Hlavní ATC skupiny (1. úroveň) s navigačními URI",
			"total":       len(entries),
			"groups":      entries,
		})
	})

	s.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "atc/level/{level}",
		Name:        "atc-level",
		Description: "ATC skupiny dané úrovně (1-5)",
		MIMEType:    jsonMIME,
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		raw, err := templateParam(req.Params.URI, uriScheme+"atc/level/")
		if err != nil {
			return nil, err
		}
		level, err := strconv.Atoi(raw)
		if err != nil {
			return nil, errs.NewValidationError("level", "must be a number between 1 and 5 (got %q)", raw)
		}
		groups, total, err := svc.ATCByLevel(ctx, level)
		if err != nil {
			return nil, err
		}
		entries := make([]atcEntry, len(groups))
		for i, g := range groups {
			entries[i] = atcEntry{Code: g.Code, Name: g.Name, NameEN: g.NameEN}
		}
		return jsonResource(req.Params.URI, map[string]any{
			"level": level,
			"total": total,
			"codes": entries,
		})
	})

	s.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "atc/tree/{root}",
		Name:        "atc-tree",
		Description: "Všechny ATC kódy pod zadaným kořenem",
		MIMEType:    jsonMIME,
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		root, err := templateParam(req.Params.URI, uriScheme+"atc/tree/")
		if err != nil {
			return nil, err
		}
		groups, total, err := svc.ATCSubtree(ctx, root)
		if err != nil {
			return nil, err
		}
		entries := make([]atcEntry, len(groups))
		for i, g := range groups {
			entries[i] = atcEntry{Code: g.Code, Name: g.Name, Level: entities.ATCLevel(g.Code)}
		}
		return jsonResource(req.Params.URI, map[string]any{
			"root_code":         strings.ToUpper(root),
			"total_descendants": total,
			"codes":             entries,
		})
	})

	s.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "atc/{code}",
		Name:        "atc-code",
		Description: "Detail ATC skupiny s rodičem a podskupinami",
		MIMEType:    jsonMIME,
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		code, err := templateParam(req.Params.URI, uriScheme+"atc/")
		if err != nil {
			return nil, err
		}
		node, err := svc.ATCNode(ctx, code)
		if errors.Is(err, errs.ErrNotFound) {
			return jsonResource(req.Params.URI, map[string]any{
				"error": "ATC kód nenalezen",
				"code":  strings.ToUpper(code),
			})
		}
		if err != nil {
			return nil, err
		}
		return jsonResource(req.Params.URI, atcNodePayload(node))
	})

	s.AddResource(&mcp.Resource{
		URI:         uriScheme + "pharmacies/regions",
		Name:        "pharmacy-regions",
		Description: "Seznam krajů s lékárnami",
		MIMEType:    jsonMIME,
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		regions, err := svc.PharmacyRegions(ctx)
		if err != nil {
			return nil, err
		}
		return jsonResource(req.Params.URI, map[string]any{
			"total":   len(regions),
			"regions": regions,
		})
	})

	s.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "pharmacies/region/{region}",
		Name:        "pharmacies-by-region",
		Description: "Lékárny v daném kraji",
		MIMEType:    jsonMIME,
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		region, err := templateParam(req.Params.URI, uriScheme+"pharmacies/region/")
		if err != nil {
			return nil, err
		}
		pharmacies, total, err := svc.PharmaciesByRegion(ctx, region)
		if err != nil {
			return nil, err
		}
		type entry struct {
			Name       string `json:"name"`
			City       string `json:"city"`
			Street     string `json:"street"`
			PostalCode string `json:"postal_code"`
		}
		entries := make([]entry, len(pharmacies))
		for i, p := range pharmacies {
			entries[i] = entry{Name: p.Name, City: p.City, Street: p.Street, PostalCode: p.PostalCode}
		}
		return jsonResource(req.Params.URI, map[string]any{
			"region":     region,
			"total":      total,
			"pharmacies": entries,
		})
	})

	s.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "documents/{code}/availability",
		Name:        "document-availability",
		Description: "Odkazy na PIL a SPC dokumenty léčiva",
		MIMEType:    jsonMIME,
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		rest, ok := strings.CutSuffix(req.Params.URI, "/availability")
		if !ok {
			return nil, fmt.Errorf("invalid resource URI %q", req.Params.URI)
		}
		code, err := templateParam(rest, uriScheme+"documents/")
		if err != nil {
			return nil, err
		}
		pil, spc, err := svc.DocumentLinks(ctx, code)
		if errors.Is(err, errs.ErrNotFound) {
			return nil, mcp.ResourceNotFoundError(req.Params.URI)
		}
		if err != nil {
			return nil, err
		}
		return jsonResource(req.Params.URI, map[string]any{
			"sukl_code": entities.PadCode(code),
			"documents": map[string]any{
				"pil": map[string]string{
					"url":         pil,
					"type":        "Příbalová informace (PIL)",
					"format":      "pdf",
					"description": "Informace pro pacienty v českém jazyce",
				},
				"spc": map[string]string{
					"url":         spc,
					"type":        "Souhrn údajů o přípravku (SPC)",
					"format":      "pdf",
					"description": "Odborné informace pro zdravotnické pracovníky",
				},
			},
			"note": "Pro stažení a parsování obsahu použijte get_pil_content nebo get_spc_content",
		})
	})
}

func atcNodePayload(node *lookup.ATCNode) map[string]any {
	children := node.Children
	if len(children) > maxNodeListing {
		children = children[:maxNodeListing]
	}
	entries := make([]atcEntry, len(children))
	childURIs := make([]string, 0, maxNodeURIs)
	for i, c := range children {
		entries[i] = atcEntry{Code: c.Code, Name: c.Name}
		if len(childURIs) < maxNodeURIs {
			childURIs = append(childURIs, atcURI(c.Code))
		}
	}

	payload := map[string]any{
		"code":           node.Group.Code,
		"name":           node.Group.Name,
		"name_en":        node.Group.NameEN,
		"level":          node.Level,
		"parent":         nil,
		"children":       entries,
		"total_children": len(node.Children),
		"uri_parent":     nil,
		"uri_children":   childURIs,
	}
	if node.Parent != "" {
		payload["parent"] = node.Parent
		payload["uri_parent"] = atcURI(node.Parent)
	}
	return payload
}
