package controllers

import (
	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"treevault/services"
	"treevault/utils"
)

// ItemController hosts the operations shared by files and folders.
type ItemController struct {
	treeService *services.TreeService
}

func NewItemController(treeService *services.TreeService) *ItemController {
	return &ItemController{treeService: treeService}
}

// RenameItem renames an item. File renames relabel the stored asset and
// propagate the new name to every linked reference.
func (ic *ItemController) RenameItem(c *gin.Context) {
	owner, ok := requestOwner(c)
	if !ok {
		return
	}
	itemID, ok := pathObjectID(c, "id")
	if !ok {
		return
	}

	var req struct {
		Name string `json:"name" binding:"required,min=1,max=255"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request data", err.Error())
		return
	}

	if err := ic.treeService.Rename(c.Request.Context(), owner, itemID, req.Name); err != nil {
		handleServiceError(c, err, "Failed to rename item")
		return
	}
	utils.SuccessResponse(c, "Item renamed successfully", nil)
}

// MoveItem re-parents an item under a destination folder.
func (ic *ItemController) MoveItem(c *gin.Context) {
	owner, ok := requestOwner(c)
	if !ok {
		return
	}
	itemID, ok := pathObjectID(c, "id")
	if !ok {
		return
	}

	var req struct {
		DestinationID string `json:"destination_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request data", err.Error())
		return
	}
	destID, err := primitive.ObjectIDFromHex(req.DestinationID)
	if err != nil {
		utils.BadRequestResponse(c, "Invalid destination folder ID format", nil)
		return
	}

	if err := ic.treeService.Move(c.Request.Context(), owner, itemID, destID); err != nil {
		handleServiceError(c, err, "Failed to move item")
		return
	}
	utils.SuccessResponse(c, "Item moved successfully", nil)
}

// CreateReference links the source file into one of the caller's folders.
func (ic *ItemController) CreateReference(c *gin.Context) {
	owner, ok := requestOwner(c)
	if !ok {
		return
	}
	sourceID, ok := pathObjectID(c, "id")
	if !ok {
		return
	}

	var req struct {
		DestinationID string `json:"destination_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request data", err.Error())
		return
	}
	destID, err := primitive.ObjectIDFromHex(req.DestinationID)
	if err != nil {
		utils.BadRequestResponse(c, "Invalid destination folder ID format", nil)
		return
	}

	ref, err := ic.treeService.CreateReference(c.Request.Context(), owner, sourceID, destID)
	if err != nil {
		handleServiceError(c, err, "Failed to create reference")
		return
	}
	utils.CreatedResponse(c, "Reference created successfully", ref)
}
