package routes

import (
	"github.com/gin-gonic/gin"

	"treevault/controllers"
	"treevault/middleware"
)

func RegisterFileRoutes(rg *gin.RouterGroup, jwtSecret string, fileController *controllers.FileController) {
	files := rg.Group("/files")
	files.Use(middleware.AuthMiddleware(jwtSecret))
	{
		files.POST("", fileController.UploadFile)       // POST /files (multipart)
		files.GET("/:id", fileController.GetFile)       // GET /files/:id?download=true
		files.DELETE("/:id", fileController.DeleteFile) // DELETE /files/:id
	}
}
