package routes

import (
	"github.com/gin-gonic/gin"

	"treevault/config"
	"treevault/controllers"
	"treevault/services"
)

// Deps bundles the services the HTTP surface is wired from.
type Deps struct {
	TreeService   *services.TreeService
	DeleteService *services.DeleteService
	Assets        services.AssetStore
	Config        *config.Config
}

// SetupRoutes registers every API route group. Middleware that applies to
// the whole engine is attached in main.
func SetupRoutes(api *gin.RouterGroup, deps Deps) {
	folderController := controllers.NewFolderController(deps.TreeService, deps.DeleteService)
	fileController := controllers.NewFileController(deps.TreeService, deps.DeleteService, deps.Assets, deps.Config.MaxFileSize)
	itemController := controllers.NewItemController(deps.TreeService)
	trashController := controllers.NewTrashController(deps.DeleteService)

	RegisterFolderRoutes(api, deps.Config.JWTSecret, folderController)
	RegisterFileRoutes(api, deps.Config.JWTSecret, fileController)
	RegisterItemRoutes(api, deps.Config.JWTSecret, itemController)
	RegisterTrashRoutes(api, deps.Config.JWTSecret, trashController)
}
