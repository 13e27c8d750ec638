package router

import (
	"github.com/gin-gonic/gin"
	"github.com/nekomoe-dev/Gatekeeper/config"
	"github.com/nekomoe-dev/Gatekeeper/service"
	"github.com/nekomoe-dev/Gatekeeper/webserver/controller"
)

func Run(e *service.Engine) error {
	controller.SetEngine(e)
	engine := gin.New()
	engine.Use(gin.Recovery())
	api := engine.Group("/api")
	{
		api.POST("sweep", controller.PostSweepAll)
	}
	chat := api.Group("/:ChatIdentifier")
	{
		chat.GET("pending", controller.GetPending)
		chat.POST("sweep", controller.PostSweep)
	}
	return engine.Run(config.GetConfig().Address)
}
