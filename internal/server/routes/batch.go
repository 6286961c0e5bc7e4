package routes

import (
	"net/http"

	"github.com/aletheia-codex/backend/internal/cache"
	"github.com/aletheia-codex/backend/internal/server/response"
	"github.com/aletheia-codex/backend/pkg/common"

	"github.com/labstack/echo/v4"
)

type batchBody struct {
	ItemIDs []string `json:"item_ids" validate:"required,min=1,dive,required"`
	Reason  string   `json:"reason"`
}

func bindBatch(c echo.Context) (*batchBody, error) {
	data := new(batchBody)
	if err := c.Bind(data); err != nil {
		return nil, response.Fail(c, http.StatusBadRequest, response.CodeInvalidRequest, "Invalid request body")
	}
	if err := c.Validate(data); err != nil {
		return nil, response.Fail(c, http.StatusBadRequest, response.CodeInvalidRequest, "item_ids must be a non-empty list of ids")
	}
	return data, nil
}

// batchDone invalidates the cached graph stats once anything was approved.
func batchDone(c echo.Context, result *common.BatchResult) error {
	app, user := appContext(c)
	if result.SuccessfulCount() > 0 && result.OperationType != common.BatchReject {
		cache.Invalidate(c.Request().Context(), app.Cache, cache.GraphStatsKey(user.UserID))
	}
	return response.OK(c, result)
}

// BatchApproveHandler approves up to 50 items, reporting per item failures.
func BatchApproveHandler(c echo.Context) error {
	data, err := bindBatch(c)
	if data == nil {
		return err
	}
	app, user := appContext(c)
	result, err := app.Batch.BatchApprove(c.Request().Context(), data.ItemIDs, user.UserID)
	if err != nil {
		return response.FromError(c, err, "Failed to process batch approval")
	}
	return batchDone(c, result)
}

// BatchRejectHandler rejects up to 50 items with a shared reason.
func BatchRejectHandler(c echo.Context) error {
	data, err := bindBatch(c)
	if data == nil {
		return err
	}
	app, user := appContext(c)
	result, err := app.Batch.BatchReject(c.Request().Context(), data.ItemIDs, user.UserID, data.Reason)
	if err != nil {
		return response.FromError(c, err, "Failed to process batch rejection")
	}
	return batchDone(c, result)
}

// BatchProcessHandler runs a mixed list of approvals and rejections.
func BatchProcessHandler(c echo.Context) error {
	type batchProcessBody struct {
		Operations []common.BatchOperation `json:"operations" validate:"required,min=1,dive"`
	}

	data := new(batchProcessBody)
	if err := c.Bind(data); err != nil {
		return response.Fail(c, http.StatusBadRequest, response.CodeInvalidRequest, "Invalid request body")
	}
	if err := c.Validate(data); err != nil {
		return response.Fail(c, http.StatusBadRequest, response.CodeInvalidRequest, "operations must list item_id and operation_type (approve or reject)")
	}

	app, user := appContext(c)
	result, err := app.Batch.BatchProcess(c.Request().Context(), data.Operations, user.UserID)
	if err != nil {
		return response.FromError(c, err, "Failed to process batch")
	}
	return batchDone(c, result)
}

// BatchEstimateHandler estimates a batch without touching any item.
func BatchEstimateHandler(c echo.Context) error {
	type estimateBody struct {
		ItemIDs []string `json:"item_ids"`
	}

	data := new(estimateBody)
	if err := c.Bind(data); err != nil {
		return response.Fail(c, http.StatusBadRequest, response.CodeInvalidRequest, "Invalid request body")
	}
	app, _ := appContext(c)
	return response.OK(c, app.Batch.GetBatchEstimate(data.ItemIDs))
}

// BatchValidateHandler lists the items of a batch the caller may not touch.
func BatchValidateHandler(c echo.Context) error {
	type validateResponse struct {
		Valid        bool     `json:"valid"`
		Unauthorized []string `json:"unauthorized_items"`
	}

	data, err := bindBatch(c)
	if data == nil {
		return err
	}
	app, user := appContext(c)
	valid, unauthorized, err := app.Batch.ValidateBatchPermissions(c.Request().Context(), data.ItemIDs, user.UserID)
	if err != nil {
		return response.FromError(c, err, "Failed to validate batch")
	}
	return response.OK(c, validateResponse{Valid: valid, Unauthorized: unauthorized})
}
