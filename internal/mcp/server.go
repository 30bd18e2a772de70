package mcp

import (
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/claude/mafwalk/internal/maf"
)

// New creates an MCP server with all tools and resources registered. Zones
// are computed locally from the stored profile under policy.
func New(ds DataSource, policy maf.Policy, version string, log *slog.Logger) *server.MCPServer {
	s := server.NewMCPServer("MAF Walk", version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithInstructions("MAF Walk activity server. Query the walker's MAF heart-rate zone, classify heart rates, and read daily, weekly and monthly walking stats. All tools are read-only."),
	)

	h := newHandlers(ds, policy, log)

	s.AddTools(
		server.ServerTool{Tool: toolGetMAFZone, Handler: h.getMAFZone},
		server.ServerTool{Tool: toolClassifyHeartRate, Handler: h.classifyHeartRate},
		server.ServerTool{Tool: toolGetDailyStats, Handler: h.getDailyStats},
		server.ServerTool{Tool: toolGetWeeklyStats, Handler: h.getWeeklyStats},
		server.ServerTool{Tool: toolGetMonthlyStats, Handler: h.getMonthlyStats},
		server.ServerTool{Tool: toolGetActivities, Handler: h.getActivities},
		server.ServerTool{Tool: toolGetStreak, Handler: h.getStreak},
	)

	s.AddResources(
		server.ServerResource{Resource: resToday, Handler: h.today},
	)

	return s
}

// handlers holds dependencies for MCP tool/resource handlers.
type handlers struct {
	ds     DataSource
	policy maf.Policy
	log    *slog.Logger
	now    func() time.Time
}

func newHandlers(ds DataSource, policy maf.Policy, log *slog.Logger) *handlers {
	if policy.ZoneWidth <= 0 {
		policy = maf.DefaultPolicy
	}
	return &handlers{ds: ds, policy: policy, log: log, now: time.Now}
}

// --- Resource definitions ---

var resToday = mcp.NewResource(
	"mafwalk://today",
	"Today",
	mcp.WithResourceDescription("Today's walking totals, step-goal progress, current streak and MAF zone"),
	mcp.WithMIMEType("application/json"),
)
