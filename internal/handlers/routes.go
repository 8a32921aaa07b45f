package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) RegisterRoutes(r *gin.Engine) {
	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.Static("/media", s.Cfg.MediaDir)

	r.GET("/ws/chapters/:id", s.HandleChapterWS)

	api := r.Group("/api")
	{
		authGroup := api.Group("/auth")
		authGroup.POST("/register", s.Register)
		authGroup.POST("/login", s.Login)
		authGroup.POST("/logout", s.AuthRequired(), s.Logout)

		api.GET("/manga", s.ListManga)
		api.GET("/manga/:id", s.GetManga)
		api.GET("/chapters/:id", s.GetChapter)
		api.GET("/pages/:id/image", s.GetPageImage)
		api.GET("/chapters/:id/comments", s.ListComments)
		api.POST("/chapters/:id/comments", s.AuthRequired(), s.CreateComment)
		api.DELETE("/comments/:id", s.AuthRequired(), s.DeleteComment)

		user := api.Group("/user", s.AuthRequired())
		user.GET("/me", s.GetMe)
		user.GET("/bookmarks", s.ListBookmarks)
		user.POST("/bookmarks", s.SaveBookmark)
		user.DELETE("/bookmarks/:mangaId", s.DeleteBookmark)

		api.POST("/admin/login", s.AdminLogin)
		api.POST("/admin/init/reset", s.InitReset)

		admin := api.Group("/admin", s.AdminRequired())
		admin.POST("/manga", s.CreateManga)
		admin.PUT("/manga/:id", s.UpdateManga)
		admin.DELETE("/manga/:id", s.DeleteManga)
		admin.POST("/manga/:id/chapters", s.CreateChapter)
		admin.DELETE("/chapters/:id", s.DeleteChapter)
		admin.POST("/chapters/:id/pages", s.UploadPage)
		admin.POST("/pages", s.RegisterPage)
		admin.GET("/stats", s.GetStats)
	}
}
