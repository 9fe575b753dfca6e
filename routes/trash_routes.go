package routes

import (
	"github.com/gin-gonic/gin"

	"treevault/controllers"
	"treevault/middleware"
)

func RegisterTrashRoutes(rg *gin.RouterGroup, jwtSecret string, trashController *controllers.TrashController) {
	trash := rg.Group("/trash")
	trash.Use(middleware.AuthMiddleware(jwtSecret))
	{
		trash.GET("", trashController.ListTrash)        // GET /trash?limit=&offset=
		trash.POST("/restore", trashController.Restore) // POST /trash/restore
	}
}
