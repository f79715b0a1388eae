/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package api

import (
	"net/http"

	"github.com/blnkfinance/tally"
	"github.com/blnkfinance/tally/api/middleware"
	"github.com/blnkfinance/tally/config"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

type Api struct {
	tally  *tally.Tally
	router *gin.Engine
}

// Router registers the report routes. Every route requires a caller token.
func (a Api) Router() *gin.Engine {
	router := a.router

	reports := router.Group("/", middleware.IdentityMiddleware(a.tally.Identity()))
	reports.POST("/generate_file", a.GenerateFile)
	reports.GET("/get_share", a.GetShare)
	reports.GET("/generated_hashes", a.GetGeneratedHashes)
	reports.GET("/download/get_weight/:path", a.GetFileWeight)
	reports.GET("/download/:path", a.DownloadReport)

	return a.router
}

func NewAPI(t *tally.Tally) *Api {
	gin.SetMode(gin.ReleaseMode)
	conf, err := config.Fetch()
	if err != nil {
		return nil
	}
	r := gin.Default()
	r.Use(otelgin.Middleware(conf.ProjectName))
	r.Use(middleware.RateLimitMiddleware(conf))
	if conf.Server.Secure {
		r.Use(middleware.SecretKeyAuthMiddleware())
	}

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, "server running...")
	})

	return &Api{tally: t, router: r}
}
