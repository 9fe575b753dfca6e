package controllers

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"treevault/services"
	"treevault/utils"
)

type FileController struct {
	treeService   *services.TreeService
	deleteService *services.DeleteService
	assets        services.AssetStore
	maxFileSize   int64
}

func NewFileController(treeService *services.TreeService, deleteService *services.DeleteService, assets services.AssetStore, maxFileSize int64) *FileController {
	return &FileController{
		treeService:   treeService,
		deleteService: deleteService,
		assets:        assets,
		maxFileSize:   maxFileSize,
	}
}

// UploadFile streams a multipart upload into object storage and commits the
// record and tree item. With no parent_id the file lands in the owner's root.
func (fc *FileController) UploadFile(c *gin.Context) {
	owner, ok := requestOwner(c)
	if !ok {
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		utils.BadRequestResponse(c, "No file provided", err.Error())
		return
	}
	if fileHeader.Size > fc.maxFileSize {
		utils.PayloadTooLargeResponse(c, "File exceeds the maximum allowed size")
		return
	}

	var parentID primitive.ObjectID
	if raw := c.PostForm("parent_id"); raw != "" {
		parentID, err = primitive.ObjectIDFromHex(raw)
		if err != nil {
			utils.BadRequestResponse(c, "Invalid parent folder ID format", nil)
			return
		}
	} else {
		root, err := fc.treeService.EnsureRoot(c.Request.Context(), owner)
		if err != nil {
			handleServiceError(c, err, "Failed to resolve root folder")
			return
		}
		parentID = root.ID
	}

	src, err := fileHeader.Open()
	if err != nil {
		utils.InternalServerErrorResponse(c, "Failed to read uploaded file", err.Error())
		return
	}
	defer src.Close()

	destPath := services.AssetFolderPath(owner, parentID)
	up, err := fc.assets.Upload(c.Request.Context(), src, destPath, fileHeader.Filename, fileHeader.Header.Get("Content-Type"))
	if err != nil {
		utils.ServiceUnavailableResponse(c, "Failed to store file")
		return
	}

	uploadedBy := owner.ID
	if raw, exists := c.Get("userId"); exists {
		if s, ok := raw.(string); ok {
			if id, err := primitive.ObjectIDFromHex(s); err == nil {
				uploadedBy = id
			}
		}
	}

	item, rec, err := fc.treeService.AddFile(c.Request.Context(), owner, parentID, fileHeader.Filename, uploadedBy, *up, c.PostFormArray("tags"))
	if err != nil {
		handleServiceError(c, err, "Failed to save file")
		return
	}

	utils.CreatedResponse(c, "File uploaded successfully", gin.H{
		"item":   item,
		"record": rec,
	})
}

// GetFile returns the file item, its record and a signed delivery URL.
func (fc *FileController) GetFile(c *gin.Context) {
	owner, ok := requestOwner(c)
	if !ok {
		return
	}
	itemID, ok := pathObjectID(c, "id")
	if !ok {
		return
	}

	item, rec, err := fc.treeService.GetFile(c.Request.Context(), owner, itemID)
	if err != nil {
		handleServiceError(c, err, "Failed to fetch file")
		return
	}

	opts := services.SignedURLOptions{ExpiresIn: time.Hour}
	if c.Query("download") == "true" {
		opts.ExpiresIn = 24 * time.Hour
		opts.Attachment = true
	}
	url, err := fc.assets.SignedURL(c.Request.Context(), rec.StorageLocator, opts)
	if err != nil {
		utils.ServiceUnavailableResponse(c, "Failed to generate download URL")
		return
	}

	utils.SuccessResponse(c, "File retrieved", gin.H{
		"item":   item,
		"record": rec,
		"url":    url,
	})
}

// DeleteFile moves an owned file to trash; references are removed outright.
func (fc *FileController) DeleteFile(c *gin.Context) {
	owner, ok := requestOwner(c)
	if !ok {
		return
	}
	itemID, ok := pathObjectID(c, "id")
	if !ok {
		return
	}

	result, err := fc.deleteService.DeleteFile(c.Request.Context(), owner, itemID)
	if err != nil {
		handleServiceError(c, err, "Failed to delete file")
		return
	}

	message := "File moved to trash"
	if result.PermanentlyDeleted {
		message = "File removed"
	}
	utils.SuccessResponse(c, message, result)
}
