package controllers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"treevault/services"
	"treevault/utils"
)

type TrashController struct {
	deleteService *services.DeleteService
}

func NewTrashController(deleteService *services.DeleteService) *TrashController {
	return &TrashController{deleteService: deleteService}
}

// ListTrash returns the caller's soft-deleted items with purge deadlines.
func (tc *TrashController) ListTrash(c *gin.Context) {
	owner, ok := requestOwner(c)
	if !ok {
		return
	}

	limit := parseQueryInt64(c, "limit", 50)
	if limit < 1 || limit > 200 {
		limit = 50
	}
	offset := parseQueryInt64(c, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	entries, err := tc.deleteService.ListTrash(c.Request.Context(), owner, limit, offset)
	if err != nil {
		handleServiceError(c, err, "Failed to list trash")
		return
	}

	utils.PaginatedSuccessResponse(c, "Trash retrieved", entries, &utils.Pagination{
		Limit:  limit,
		Offset: offset,
		Count:  len(entries),
	})
}

// Restore brings an item back from trash while the restore window is open.
func (tc *TrashController) Restore(c *gin.Context) {
	owner, ok := requestOwner(c)
	if !ok {
		return
	}

	var req struct {
		ItemID string `json:"item_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request data", err.Error())
		return
	}
	itemID, err := primitive.ObjectIDFromHex(req.ItemID)
	if err != nil {
		utils.BadRequestResponse(c, "Invalid item ID format", nil)
		return
	}

	if err := tc.deleteService.Restore(c.Request.Context(), owner, itemID); err != nil {
		handleServiceError(c, err, "Failed to restore item")
		return
	}
	utils.SuccessResponse(c, "Item restored successfully", nil)
}

func parseQueryInt64(c *gin.Context, key string, fallback int64) int64 {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fallback
	}
	return v
}
