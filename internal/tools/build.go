// Package tools assembles the fixed tool set offered to the model.
package tools

import (
	"log/slog"

	"github.com/haasonsaas/parley/internal/agent"
	"github.com/haasonsaas/parley/internal/tools/clock"
	"github.com/haasonsaas/parley/internal/tools/notion"
	"github.com/haasonsaas/parley/internal/tools/webfetch"
	"github.com/haasonsaas/parley/internal/tools/websearch"
)

// Config gates the optional tools. Missing credentials are not an error;
// the tool is simply not offered to the model.
type Config struct {
	Search websearch.Config `yaml:"search"`
	Notion notion.Config    `yaml:"notion"`
}

// Build constructs the registry. Page fetch and the clock are always
// present; web search and the knowledge-base search require credentials.
func Build(cfg Config, logger *slog.Logger) *agent.Registry {
	reg := agent.NewRegistry()
	reg.Register(webfetch.New(logger))
	reg.Register(clock.New())
	if cfg.Search.Enabled() {
		reg.Register(websearch.New(cfg.Search, logger))
	}
	if cfg.Notion.Enabled() {
		reg.Register(notion.NewTool(cfg.Notion, logger))
	}
	return reg
}
