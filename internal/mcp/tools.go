package mcp

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/claude/mafwalk/internal/maf"
	"github.com/claude/mafwalk/internal/models"
)

// activityRange converts optional start/end arguments into stored-date bounds.
// A date-only end covers the whole day.
func activityRange(startStr, endStr string) (string, string, error) {
	start, end := "", "9999-12-31T23:59:59.999Z"

	if startStr != "" {
		t, err := parseFlexTime(startStr)
		if err != nil {
			return "", "", err
		}
		start = models.FormatTimestamp(t)
	}
	if endStr != "" {
		t, err := parseFlexTime(endStr)
		if err != nil {
			return "", "", err
		}
		if len(endStr) == len(models.DateLayout) {
			t = t.Add(24*time.Hour - time.Millisecond)
		}
		end = models.FormatTimestamp(t)
	}
	return start, end, nil
}

func parseFlexTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err == nil {
		return t, nil
	}
	t, err = time.Parse(models.DateLayout, s)
	if err == nil {
		return t, nil
	}
	return time.Time{}, err
}

// --- Tool definitions ---

var toolGetMAFZone = mcp.NewTool("get_maf_zone",
	mcp.WithDescription("Get the walker's profile and MAF heart-rate zone (180 minus age, adjusted for fitness and health). Falls back to the default profile when none is saved."),
)

var toolClassifyHeartRate = mcp.NewTool("classify_heart_rate",
	mcp.WithDescription("Classify a heart rate as below, inside or above the walker's MAF zone. Both zone bounds count as inside."),
	mcp.WithNumber("hr", mcp.Required(), mcp.Description("Heart rate in bpm")),
)

var toolGetDailyStats = mcp.NewTool("get_daily_stats",
	mcp.WithDescription("Get the walking totals of one day: steps, distance (km), duration (minutes), average heart rate, minutes in MAF zone and the sessions."),
	mcp.WithString("date", mcp.Description("Date (YYYY-MM-DD). Defaults to today (UTC).")),
)

var toolGetWeeklyStats = mcp.NewTool("get_weekly_stats",
	mcp.WithDescription("Daily walking totals for the last 7 days, oldest first. Days without activity are omitted."),
)

var toolGetMonthlyStats = mcp.NewTool("get_monthly_stats",
	mcp.WithDescription("Daily walking totals for the last 30 days, oldest first. Days without activity are omitted."),
)

var toolGetActivities = mcp.NewTool("get_activities",
	mcp.WithDescription("List recorded walking sessions, optionally within a date range."),
	mcp.WithString("start", mcp.Description("Start date (ISO 8601 or YYYY-MM-DD). Defaults to the first session.")),
	mcp.WithString("end", mcp.Description("End date (ISO 8601 or YYYY-MM-DD). A plain date includes the whole day. Defaults to the last session.")),
)

var toolGetStreak = mcp.NewTool("get_streak",
	mcp.WithDescription("Number of consecutive days with at least one walking session, ending today or yesterday."),
)

// --- Tool handlers ---

func (h *handlers) getMAFZone(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	profile, saved, err := h.ds.GetProfileOrDefault(ctx)
	if err != nil {
		h.log.Error("mcp get_maf_zone", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(map[string]any{
		"profile": profile,
		"saved":   saved,
		"maf":     h.policy.ForProfile(profile),
	})
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) classifyHeartRate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	hr, err := req.RequireFloat("hr")
	if err != nil {
		return mcp.NewToolResultError("hr parameter is required"), nil
	}

	profile, _, err := h.ds.GetProfileOrDefault(ctx)
	if err != nil {
		h.log.Error("mcp classify_heart_rate", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	zone := h.policy.ForProfile(profile)
	reading := maf.HeartRateZone(hr, zone)

	result, err := mcp.NewToolResultJSON(map[string]any{
		"heart_rate":      hr,
		"zone":            reading.Zone,
		"percentage":      reading.Percentage,
		"in_zone":         maf.InZone(hr, zone),
		"marker_position": maf.MarkerPosition(hr, zone),
		"maf":             zone,
	})
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getDailyStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	date := req.GetString("date", "")
	if date == "" {
		date = h.now().UTC().Format(models.DateLayout)
	} else if _, err := time.Parse(models.DateLayout, date); err != nil {
		return mcp.NewToolResultError("invalid date format: " + err.Error()), nil
	}

	stats, found, err := h.ds.GetDailyStats(ctx, date)
	if err != nil {
		h.log.Error("mcp get_daily_stats", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	if !found {
		stats = models.NewDailyStats(date)
	}

	result, err := mcp.NewToolResultJSON(stats)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getWeeklyStats(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := h.ds.GetWeeklyStats(ctx)
	if err != nil {
		h.log.Error("mcp get_weekly_stats", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(stats)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getMonthlyStats(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := h.ds.GetMonthlyStats(ctx)
	if err != nil {
		h.log.Error("mcp get_monthly_stats", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(stats)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getActivities(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	startStr := req.GetString("start", "")
	endStr := req.GetString("end", "")

	var sessions []models.ActivitySession
	var err error
	if startStr == "" && endStr == "" {
		sessions, err = h.ds.GetAllActivities(ctx)
	} else {
		start, end, rerr := activityRange(startStr, endStr)
		if rerr != nil {
			return mcp.NewToolResultError("invalid date format: " + rerr.Error()), nil
		}
		sessions, err = h.ds.GetActivitiesByDateRange(ctx, start, end)
	}
	if err != nil {
		h.log.Error("mcp get_activities", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(sessions)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getStreak(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	streak, err := h.ds.GetCurrentStreak(ctx)
	if err != nil {
		h.log.Error("mcp get_streak", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(map[string]int{"streak": streak})
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}
