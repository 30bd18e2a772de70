package mcp

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/claude/mafwalk/internal/models"
	"github.com/claude/mafwalk/internal/storage"
)

func (h *handlers) today(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	date := h.now().UTC().Format(models.DateLayout)

	profile, _, err := h.ds.GetProfileOrDefault(ctx)
	if err != nil {
		return nil, err
	}

	stats, found, err := h.ds.GetDailyStats(ctx, date)
	if err != nil {
		return nil, err
	}
	if !found {
		stats = models.NewDailyStats(date)
	}

	streak, err := h.ds.GetCurrentStreak(ctx)
	if err != nil {
		h.log.Warn("today: streak failed", "error", err)
	}

	summary := map[string]any{
		"date":          date,
		"stats":         stats,
		"step_goal":     profile.DailyStepGoal,
		"step_progress": storage.StepGoalProgress(&stats, profile.DailyStepGoal),
		"streak":        streak,
		"maf":           h.policy.ForProfile(profile),
	}

	data, err := json.Marshal(summary)
	if err != nil {
		return nil, err
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
