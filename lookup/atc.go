package lookup

import (
	"context"
	"fmt"
	"strings"

	"github.com/giygas/sukl-mcp/errs"
	"github.com/giygas/sukl-mcp/logging"
	"github.com/giygas/sukl-mcp/opendata/entities"
)

const (
	UnknownATCName  = "Neznámá skupina"
	maxATCScan      = 100
	maxATCChildren  = 20
	maxATCListing   = 100
	atcCodebookName = "atc"
)

// ATCNode is one ATC group with its parent and direct children.
type ATCNode struct {
	Group    entities.ATCGroup
	Level    int
	Parent   string
	Children []entities.ATCGroup
}

// GetATCInfo describes the ATC group atcCode and lists its descendants.
// Only the first 100 codes with the prefix are examined.
func (s *Service) GetATCInfo(ctx context.Context, atcCode string) (*ATCInfo, error) {
	prefix, err := s.validator.ValidateATCPrefix(atcCode)
	if err != nil {
		return nil, err
	}
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	matches := make([]entities.ATCGroup, 0, maxATCScan)
	for _, g := range s.store.GetATCGroups() {
		if strings.HasPrefix(g.Code, prefix) {
			matches = append(matches, g)
			if len(matches) == maxATCScan {
				break
			}
		}
	}

	info := &ATCInfo{
		Code:     prefix,
		Level:    entities.ATCLevel(prefix),
		Children: []ATCChild{},
	}

	for _, g := range matches {
		switch {
		case g.Code == prefix:
			info.Name = g.Name
		case len(g.Code) > len(prefix):
			info.TotalChildren++
			if len(info.Children) < maxATCChildren {
				info.Children = append(info.Children, ATCChild{Code: g.Code, Name: g.Name})
			}
		}
	}

	if info.Name == "" {
		info.Name = s.atcNameFromCodebook(ctx, prefix)
	}
	return info, nil
}

func (s *Service) atcNameFromCodebook(ctx context.Context, code string) string {
	if s.api == nil {
		return UnknownATCName
	}
	entries, err := s.api.GetCodebook(ctx, atcCodebookName)
	if err != nil {
		logging.Warn("ATC codebook lookup failed", "atc_code", code, "error", err)
		return UnknownATCName
	}
	for _, e := range entries {
		if strings.EqualFold(e.Code, code) && e.Name != "" {
			recordSource("atc", SourceREST)
			return e.Name
		}
	}
	return UnknownATCName
}

// TopLevelATC returns the first-level ATC groups.
func (s *Service) TopLevelATC(ctx context.Context) ([]entities.ATCGroup, error) {
	groups, _, err := s.ATCByLevel(ctx, 1)
	return groups, err
}

// ATCByLevel returns at most 100 groups of a level (1-5) and the level's
// total count.
func (s *Service) ATCByLevel(ctx context.Context, level int) ([]entities.ATCGroup, int, error) {
	if err := s.validator.ValidateLimit("level", level, 1, 5); err != nil {
		return nil, 0, err
	}
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, 0, err
	}

	length := entities.ATCCodeLength(level)
	total := 0
	out := make([]entities.ATCGroup, 0)
	for _, g := range s.store.GetATCGroups() {
		if len(g.Code) != length {
			continue
		}
		total++
		if len(out) < maxATCListing {
			out = append(out, g)
		}
	}
	return out, total, nil
}

// ATCNode returns a group with its parent code and direct children. It
// returns errs.ErrNotFound for unknown codes.
func (s *Service) ATCNode(ctx context.Context, code string) (*ATCNode, error) {
	code, err := s.validator.ValidateATCPrefix(code)
	if err != nil {
		return nil, err
	}
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	level := entities.ATCLevel(code)
	childLength := entities.ATCCodeLength(level + 1)

	var node *ATCNode
	children := make([]entities.ATCGroup, 0)
	for _, g := range s.store.GetATCGroups() {
		if g.Code == code {
			node = &ATCNode{Group: g, Level: level, Parent: entities.ATCParent(code)}
			continue
		}
		if childLength > 0 && len(g.Code) == childLength && strings.HasPrefix(g.Code, code) {
			children = append(children, g)
		}
	}
	if node == nil {
		return nil, fmt.Errorf("ATC group %s: %w", code, errs.ErrNotFound)
	}
	node.Children = children
	return node, nil
}

// ATCSubtree returns at most 100 groups starting with root, root included,
// and the number of such groups.
func (s *Service) ATCSubtree(ctx context.Context, root string) ([]entities.ATCGroup, int, error) {
	root, err := s.validator.ValidateATCPrefix(root)
	if err != nil {
		return nil, 0, err
	}
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, 0, err
	}

	total := 0
	out := make([]entities.ATCGroup, 0)
	for _, g := range s.store.GetATCGroups() {
		if !strings.HasPrefix(g.Code, root) {
			continue
		}
		total++
		if len(out) < maxATCListing {
			out = append(out, g)
		}
	}
	return out, total, nil
}
