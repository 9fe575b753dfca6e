package controllers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"treevault/middleware"
	"treevault/models"
	"treevault/services"
	"treevault/utils"
)

// requestOwner pulls the acting owner off the context, aborting with 401 if
// the auth middleware never ran.
func requestOwner(c *gin.Context) (models.Owner, bool) {
	owner, ok := middleware.OwnerFromContext(c)
	if !ok {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return models.Owner{}, false
	}
	return owner, true
}

func pathObjectID(c *gin.Context, param string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param(param))
	if err != nil {
		utils.BadRequestResponse(c, fmt.Sprintf("Invalid %s format", param), err.Error())
		return primitive.NilObjectID, false
	}
	return id, true
}

// handleServiceError maps service sentinels onto HTTP statuses.
func handleServiceError(c *gin.Context, err error, defaultMessage string) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		utils.NotFoundResponse(c, "Item not found")
	case errors.Is(err, services.ErrInvariantViolation):
		utils.ConflictResponse(c, "Operation not allowed", err.Error())
	case errors.Is(err, services.ErrStorageUnavailable):
		utils.ServiceUnavailableResponse(c, "Object storage is unavailable, try again later")
	default:
		utils.ErrorResponse(c, http.StatusInternalServerError, defaultMessage, err.Error())
	}
}
