package routes

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aletheia-codex/backend/internal/cache"
	"github.com/aletheia-codex/backend/internal/metrics"
	"github.com/aletheia-codex/backend/internal/queue"
	"github.com/aletheia-codex/backend/internal/server/middleware"
	"github.com/aletheia-codex/backend/internal/server/response"
	"github.com/aletheia-codex/backend/pkg/common"
	"github.com/aletheia-codex/backend/pkg/store"

	"github.com/labstack/echo/v4"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const graphStatsTTL = 5 * time.Minute

func appContext(c echo.Context) (*middleware.App, *middleware.AppUser) {
	ac := c.(*middleware.AppContext)
	return ac.App, ac.User
}

type pendingFilters struct {
	Limit         int     `json:"limit"`
	MinConfidence float64 `json:"min_confidence"`
	Type          string  `json:"type,omitempty"`
	OrderBy       string  `json:"order_by"`
	Descending    bool    `json:"descending"`
}

// GetPendingHandler lists the caller's pending review items.
func GetPendingHandler(c echo.Context) error {
	type getPendingResponse struct {
		Items   []*common.ReviewItem `json:"items"`
		Count   int                  `json:"count"`
		Filters pendingFilters       `json:"filters"`
	}

	app, user := appContext(c)

	f := pendingFilters{
		Limit:      store.DefaultPendingLimit,
		OrderBy:    string(store.OrderByConfidence),
		Descending: true,
	}
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return response.Fail(c, http.StatusBadRequest, response.CodeInvalidParameter, "limit must be a positive integer")
		}
		f.Limit = min(n, store.MaxPendingLimit)
	}
	if v := c.QueryParam("min_confidence"); v != "" {
		n, err := strconv.ParseFloat(v, 64)
		if err != nil || n < 0 || n > 1 {
			return response.Fail(c, http.StatusBadRequest, response.CodeInvalidParameter, "min_confidence must be between 0 and 1")
		}
		f.MinConfidence = n
	}
	if v := c.QueryParam("type"); v != "" {
		t := common.ReviewItemType(strings.ToLower(v))
		if !t.Valid() {
			return response.Fail(c, http.StatusBadRequest, response.CodeInvalidParameter, `Invalid type parameter. Must be "entity" or "relationship"`)
		}
		f.Type = string(t)
	}
	if v := c.QueryParam("order_by"); v != "" {
		if !store.PendingOrder(v).Valid() {
			return response.Fail(c, http.StatusBadRequest, response.CodeInvalidParameter, `order_by must be "confidence" or "created_at"`)
		}
		f.OrderBy = v
	}
	if v := c.QueryParam("descending"); v != "" {
		f.Descending = strings.EqualFold(v, "true")
	}

	items, err := app.Queue.GetPending(c.Request().Context(), store.PendingQuery{
		UserID:        user.UserID,
		Limit:         f.Limit,
		MinConfidence: f.MinConfidence,
		ItemType:      common.ReviewItemType(f.Type),
		OrderBy:       store.PendingOrder(f.OrderBy),
		Descending:    f.Descending,
	})
	if err != nil {
		return response.FromError(c, err, "Failed to get pending items")
	}
	if items == nil {
		items = []*common.ReviewItem{}
	}
	return response.OK(c, getPendingResponse{Items: items, Count: len(items), Filters: f})
}

type itemBody struct {
	ItemID string `json:"item_id" validate:"required"`
	Reason string `json:"reason"`
}

func bindItem(c echo.Context) (*itemBody, error) {
	data := new(itemBody)
	if err := c.Bind(data); err != nil {
		return nil, response.Fail(c, http.StatusBadRequest, response.CodeInvalidRequest, "Invalid request body")
	}
	if err := c.Validate(data); err != nil {
		return nil, response.Fail(c, http.StatusBadRequest, response.CodeInvalidRequest, "item_id is required")
	}
	return data, nil
}

// ApproveHandler approves a single item and writes it to the graph.
func ApproveHandler(c echo.Context) error {
	type approveResponse struct {
		ItemID     string    `json:"item_id"`
		ApprovedAt time.Time `json:"approved_at"`
	}

	data, err := bindItem(c)
	if data == nil {
		return err
	}
	app, user := appContext(c)
	ctx := c.Request().Context()

	item, err := app.Queue.GetItemForUser(ctx, data.ItemID, user.UserID)
	if err != nil {
		return response.FromError(c, err, "Failed to approve item")
	}
	ok, err := app.Workflow.Approve(ctx, data.ItemID, user.UserID)
	if err != nil {
		return response.FromError(c, err, "Failed to approve item")
	}
	if !ok {
		return response.Fail(c, http.StatusConflict, response.CodeApprovalFailed, "Failed to approve item, it is no longer pending")
	}
	metrics.ReviewTransitions.WithLabelValues(string(item.Type), string(common.ReviewApproved), "manual").Inc()
	cache.Invalidate(ctx, app.Cache, cache.GraphStatsKey(user.UserID))

	return response.OK(c, approveResponse{ItemID: data.ItemID, ApprovedAt: time.Now().UTC()})
}

// RejectHandler rejects a single item with an optional reason.
func RejectHandler(c echo.Context) error {
	type rejectResponse struct {
		ItemID     string    `json:"item_id"`
		RejectedAt time.Time `json:"rejected_at"`
		Reason     string    `json:"reason,omitempty"`
	}

	data, err := bindItem(c)
	if data == nil {
		return err
	}
	app, user := appContext(c)
	ctx := c.Request().Context()

	item, err := app.Queue.GetItemForUser(ctx, data.ItemID, user.UserID)
	if err != nil {
		return response.FromError(c, err, "Failed to reject item")
	}
	ok, err := app.Workflow.Reject(ctx, data.ItemID, user.UserID, data.Reason)
	if err != nil {
		return response.FromError(c, err, "Failed to reject item")
	}
	if !ok {
		return response.Fail(c, http.StatusConflict, response.CodeRejectionFailed, "Failed to reject item, it is no longer pending")
	}
	metrics.ReviewTransitions.WithLabelValues(string(item.Type), string(common.ReviewRejected), "manual").Inc()

	return response.OK(c, rejectResponse{ItemID: data.ItemID, RejectedAt: time.Now().UTC(), Reason: data.Reason})
}

// GetStatsHandler returns the caller's review counters.
func GetStatsHandler(c echo.Context) error {
	type statsResponse struct {
		*common.UserStats
		TotalReviewed int     `json:"total_reviewed"`
		ApprovalRate  float64 `json:"approval_rate"`
	}

	app, user := appContext(c)
	stats, err := app.Queue.GetUserStats(c.Request().Context(), user.UserID)
	if err != nil {
		return response.FromError(c, err, "Failed to get user stats")
	}
	return response.OK(c, statsResponse{
		UserStats:     stats,
		TotalReviewed: stats.TotalReviewed(),
		ApprovalRate:  stats.ApprovalRate(),
	})
}

// GetItemHandler returns one of the caller's items in any status.
func GetItemHandler(c echo.Context) error {
	app, user := appContext(c)
	item, err := app.Queue.GetItemForUser(c.Request().Context(), c.Param("id"), user.UserID)
	if err != nil {
		return response.FromError(c, err, "Failed to get item")
	}
	return response.OK(c, item)
}

// DeleteItemHandler removes one of the caller's items.
func DeleteItemHandler(c echo.Context) error {
	type deleteResponse struct {
		ItemID  string `json:"item_id"`
		Deleted bool   `json:"deleted"`
	}

	app, user := appContext(c)
	id := c.Param("id")
	ok, err := app.Queue.Delete(c.Request().Context(), id, user.UserID)
	if err != nil {
		return response.FromError(c, err, "Failed to delete item")
	}
	if !ok {
		return response.Fail(c, http.StatusNotFound, response.CodeNotFound, "Review item not found")
	}
	return response.OK(c, deleteResponse{ItemID: id, Deleted: true})
}

// GetGraphStatsHandler returns the size of the caller's graph. Results are
// cached until the next graph write.
func GetGraphStatsHandler(c echo.Context) error {
	app, user := appContext(c)
	ctx := c.Request().Context()

	stats, err := cache.GetOrLoad(ctx, app.Cache, "graph_stats", cache.GraphStatsKey(user.UserID), graphStatsTTL,
		func(ctx context.Context) (*common.GraphStats, error) {
			return app.Graph.GetUserStats(ctx, user.UserID)
		},
	)
	if err != nil {
		return response.FromError(c, err, "Failed to get graph stats")
	}
	return response.OK(c, stats)
}

// RebuildGraphHandler schedules a rebuild of the caller's graph from all
// approved items.
func RebuildGraphHandler(c echo.Context) error {
	type rebuildResponse struct {
		UserID        string `json:"user_id"`
		CorrelationID string `json:"correlation_id"`
		Status        string `json:"status"`
	}

	app, user := appContext(c)
	correlationID, err := gonanoid.New()
	if err != nil {
		return response.FromError(c, err, "Failed to schedule rebuild")
	}
	err = queue.PublishRebuild(c.Request().Context(), app.Publisher, queue.RebuildMsg{
		UserID:        user.UserID,
		CorrelationID: correlationID,
	})
	if err != nil {
		return response.FromError(c, err, "Failed to schedule rebuild")
	}
	return c.JSON(http.StatusAccepted, response.Envelope{
		Success: true,
		Data:    rebuildResponse{UserID: user.UserID, CorrelationID: correlationID, Status: "queued"},
	})
}
