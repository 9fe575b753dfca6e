package routes

import (
	"github.com/gin-gonic/gin"

	"treevault/controllers"
	"treevault/middleware"
)

func RegisterItemRoutes(rg *gin.RouterGroup, jwtSecret string, itemController *controllers.ItemController) {
	items := rg.Group("/items")
	items.Use(middleware.AuthMiddleware(jwtSecret))
	{
		items.PATCH("/:id/rename", itemController.RenameItem)        // PATCH /items/:id/rename
		items.POST("/:id/move", itemController.MoveItem)             // POST /items/:id/move
		items.POST("/:id/reference", itemController.CreateReference) // POST /items/:id/reference
	}
}
