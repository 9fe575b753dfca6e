package controllers

import (
	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"treevault/services"
	"treevault/utils"
)

type FolderController struct {
	treeService   *services.TreeService
	deleteService *services.DeleteService
}

func NewFolderController(treeService *services.TreeService, deleteService *services.DeleteService) *FolderController {
	return &FolderController{
		treeService:   treeService,
		deleteService: deleteService,
	}
}

// CreateFolder creates a folder; with no parent_id it goes under the
// owner's root, which is provisioned on first use.
func (fc *FolderController) CreateFolder(c *gin.Context) {
	owner, ok := requestOwner(c)
	if !ok {
		return
	}

	var req struct {
		Name     string  `json:"name" binding:"required,min=1,max=255"`
		ParentID *string `json:"parent_id,omitempty"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request data", err.Error())
		return
	}

	var parentID *primitive.ObjectID
	if req.ParentID != nil && *req.ParentID != "" {
		id, err := primitive.ObjectIDFromHex(*req.ParentID)
		if err != nil {
			utils.BadRequestResponse(c, "Invalid parent folder ID format", nil)
			return
		}
		parentID = &id
	}

	folder, err := fc.treeService.CreateFolder(c.Request.Context(), owner, req.Name, parentID)
	if err != nil {
		handleServiceError(c, err, "Failed to create folder")
		return
	}

	utils.CreatedResponse(c, "Folder created successfully", folder)
}

// GetFolder returns the folder and its direct, non-deleted children.
func (fc *FolderController) GetFolder(c *gin.Context) {
	owner, ok := requestOwner(c)
	if !ok {
		return
	}
	folderID, ok := pathObjectID(c, "id")
	if !ok {
		return
	}

	folder, children, err := fc.treeService.ListChildren(c.Request.Context(), owner, folderID)
	if err != nil {
		handleServiceError(c, err, "Failed to list folder contents")
		return
	}

	utils.SuccessResponse(c, "Folder contents retrieved", gin.H{
		"folder":   folder,
		"children": children,
	})
}

// GetRoot returns the owner's root folder, creating it on first use.
func (fc *FolderController) GetRoot(c *gin.Context) {
	owner, ok := requestOwner(c)
	if !ok {
		return
	}

	root, err := fc.treeService.EnsureRoot(c.Request.Context(), owner)
	if err != nil {
		handleServiceError(c, err, "Failed to resolve root folder")
		return
	}

	utils.SuccessResponse(c, "Root folder retrieved", root)
}

// DeleteFolder moves a folder subtree to trash, or destroys it immediately
// when nothing in it is recoverable.
func (fc *FolderController) DeleteFolder(c *gin.Context) {
	owner, ok := requestOwner(c)
	if !ok {
		return
	}
	folderID, ok := pathObjectID(c, "id")
	if !ok {
		return
	}

	result, err := fc.deleteService.DeleteFolder(c.Request.Context(), owner, folderID)
	if err != nil {
		handleServiceError(c, err, "Failed to delete folder")
		return
	}

	message := "Folder moved to trash"
	if result.PermanentlyDeleted {
		message = "Folder permanently deleted"
	}
	utils.SuccessResponse(c, message, result)
}
