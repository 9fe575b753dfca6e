package routes

import (
	"github.com/gin-gonic/gin"

	"treevault/controllers"
	"treevault/middleware"
)

func RegisterFolderRoutes(rg *gin.RouterGroup, jwtSecret string, folderController *controllers.FolderController) {
	folders := rg.Group("/folders")
	folders.Use(middleware.AuthMiddleware(jwtSecret))
	{
		folders.POST("", folderController.CreateFolder)       // POST /folders
		folders.GET("/root", folderController.GetRoot)        // GET /folders/root
		folders.GET("/:id", folderController.GetFolder)       // GET /folders/:id
		folders.DELETE("/:id", folderController.DeleteFolder) // DELETE /folders/:id
	}
}
