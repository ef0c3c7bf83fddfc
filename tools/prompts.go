package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const findAlternativeTemplate = `Najdi dostupnou alternativu pro léčivo "%s".

Požadavky:
1. Stejná nebo podobná účinná látka
2. Dostupné na trhu (DODAVKY = A)
3. Pokud možno s nižším doplatkem

Použij nástroj search_medicine pro vyhledání a check_availability pro ověření dostupnosti.`

const checkMedicineInfoTemplate = `Získej kompletní informace o léčivu "%s".

Zjisti:
1. Základní informace (síla, forma, balení)
2. Dostupnost na trhu
3. Cenu a úhradu pojišťovny
4. Režim výdeje (na předpis / volně prodejné)

Použij nástroje search_medicine, get_medicine_details a get_reimbursement.`

const compareMedicinesTemplate = `Porovnej léčiva "%s" a "%s".

Srovnej:
1. Účinné látky
2. Ceny a doplatky
3. Dostupnost na trhu
4. Lékové formy a síly

Použij search_medicine pro oba léky a get_reimbursement pro cenové údaje.`

// promptArg returns a required prompt argument.
func promptArg(req *mcp.GetPromptRequest, name string) (string, error) {
	value := strings.TrimSpace(req.Params.Arguments[name])
	if value == "" {
		return "", fmt.Errorf("missing required argument %q", name)
	}
	return value, nil
}

func userPrompt(description, text string) *mcp.GetPromptResult {
	return &mcp.GetPromptResult{
		Description: description,
		Messages: []*mcp.PromptMessage{
			{Role: "user", Content: &mcp.TextContent{Text: text}},
		},
	}
}

func registerPrompts(s *mcp.Server) {
	medicineArg := &mcp.PromptArgument{Name: "medicine_name", Description: "Název léčiva", Required: true}

	s.AddPrompt(&mcp.Prompt{
		Name:        "find_alternative",
		Description: "Najdi dostupnou alternativu k léčivu",
		Arguments:   []*mcp.PromptArgument{medicineArg},
	}, func(ctx context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		name, err := promptArg(req, "medicine_name")
		if err != nil {
			return nil, err
		}
		return userPrompt("Hledání alternativy", fmt.Sprintf(findAlternativeTemplate, name)), nil
	})

	s.AddPrompt(&mcp.Prompt{
		Name:        "check_medicine_info",
		Description: "Získej kompletní informace o léčivu",
		Arguments:   []*mcp.PromptArgument{medicineArg},
	}, func(ctx context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		name, err := promptArg(req, "medicine_name")
		if err != nil {
			return nil, err
		}
		return userPrompt("Informace o léčivu", fmt.Sprintf(checkMedicineInfoTemplate, name)), nil
	})

	s.AddPrompt(&mcp.Prompt{
		Name:        "compare_medicines",
		Description: "Porovnej dvě léčiva",
		Arguments: []*mcp.PromptArgument{
			{Name: "medicine1", Description: "První léčivo", Required: true},
			{Name: "medicine2", Description: "Druhé léčivo", Required: true},
		},
	}, func(ctx context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		first, err := promptArg(req, "medicine1")
		if err != nil {
			return nil, err
		}
		second, err := promptArg(req, "medicine2")
		if err != nil {
			return nil, err
		}
		return userPrompt("Porovnání léčiv", fmt.Sprintf(compareMedicinesTemplate, first, second)), nil
	})
}
