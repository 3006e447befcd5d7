package api

import (
	"net/http"
	hpprof "net/http/pprof"

	"github.com/gin-gonic/gin"
)

// mountPprof registers the runtime profiles under /debug/pprof. They answer
// 404 unless api.pprof is enabled.
func (s *Server) mountPprof(r *gin.Engine) {
	g := r.Group("/debug/pprof", func(c *gin.Context) {
		if !s.pprof.Load() {
			c.AbortWithStatus(http.StatusNotFound)
			return
		}
		c.Next()
	})
	g.GET("/", gin.WrapF(hpprof.Index))
	g.GET("/cmdline", gin.WrapF(hpprof.Cmdline))
	g.GET("/profile", gin.WrapF(hpprof.Profile))
	g.GET("/symbol", gin.WrapF(hpprof.Symbol))
	g.GET("/trace", gin.WrapF(hpprof.Trace))
	g.GET("/:name", func(c *gin.Context) {
		hpprof.Handler(c.Param("name")).ServeHTTP(c.Writer, c.Request)
	})
}
