package mcp

import (
	"context"

	"github.com/claude/mafwalk/internal/models"
	"github.com/claude/mafwalk/internal/storage"
)

// DataSource abstracts the data layer for MCP tools. Both *storage.Store
// (local) and HTTPClient (remote via REST API) satisfy this interface.
type DataSource interface {
	GetProfileOrDefault(ctx context.Context) (models.UserProfile, bool, error)
	GetDailyStats(ctx context.Context, date string) (models.DailyStats, bool, error)
	GetWeeklyStats(ctx context.Context) ([]models.DailyStats, error)
	GetMonthlyStats(ctx context.Context) ([]models.DailyStats, error)
	GetAllActivities(ctx context.Context) ([]models.ActivitySession, error)
	GetActivitiesByDateRange(ctx context.Context, startDate, endDate string) ([]models.ActivitySession, error)
	GetCurrentStreak(ctx context.Context) (int, error)
}

// Compile-time check: *storage.Store satisfies DataSource.
var _ DataSource = (*storage.Store)(nil)
