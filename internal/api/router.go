package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes 注册业务路由。authed 为已挂载身份校验中间件的分组
func RegisterRoutes(authed *gin.RouterGroup, gen *GeneratorHandler, posters *PosterHandler) {
	gemini := authed.Group("/gemini")
	{
		gemini.POST("/generate-match-background", gen.GenerateMatchBackground)
		gemini.POST("/generate-program-background", gen.GenerateProgramBackground)
	}

	p := authed.Group("/posters")
	{
		p.POST("/preview", posters.Preview)
		p.POST("", posters.Create)
		p.GET("", posters.List)
		p.GET("/:id", posters.Get)
		p.GET("/:id/image", posters.Image)
		p.GET("/:id/background", posters.Background)
		p.DELETE("/:id", posters.Delete)
	}
}

// Health 健康检查
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
