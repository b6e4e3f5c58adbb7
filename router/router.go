// Package router assembles the gin engine for the batch control surface.
package router

import (
	"github.com/gin-gonic/gin"
)

// New returns a gin engine with recovery and request logging installed.
// Route registration is left to the webservices package.
func New(logger RequestLogger, middlewares ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	if logger != nil {
		r.Use(LogRequest(logger))
	}
	r.Use(middlewares...)
	return r
}
