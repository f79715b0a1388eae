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
	"path/filepath"
	"strconv"

	"github.com/blnkfinance/tally/api/middleware"
	"github.com/blnkfinance/tally/api/model"
	"github.com/blnkfinance/tally/internal/apierror"
	tallymodel "github.com/blnkfinance/tally/model"
	"github.com/gin-gonic/gin"
)

// CodeInvalidBody is returned when the request body is not valid JSON.
const CodeInvalidBody = 4334306

// respond writes the response envelope. field names the single result key.
func respond(c *gin.Context, field string, value interface{}) {
	c.JSON(http.StatusOK, gin.H{"error": nil, "result": gin.H{field: value}})
}

func respondError(c *gin.Context, err error) {
	apiErr, ok := apierror.As(err)
	if !ok {
		apiErr = apierror.NewAPIError(apierror.ErrInternalServer, 0, err.Error(), nil)
	}
	c.JSON(apierror.MapErrorToHTTPStatus(apiErr), gin.H{"error": apiErr, "result": nil})
}

func caller(c *gin.Context) (*tallymodel.UserInfo, bool) {
	user, ok := middleware.User(c)
	if !ok {
		respondError(c, apierror.NewAPIError(apierror.ErrUnauthorized, apierror.CodeMissingToken,
			"token header is required", nil))
		return nil, false
	}
	return user, true
}

// GenerateFile builds the xlsx report described by the body and returns the
// artifact name to download.
func (a Api) GenerateFile(c *gin.Context) {
	user, ok := caller(c)
	if !ok {
		return
	}

	var body model.GenerateFile
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, apierror.NewAPIError(apierror.ErrInvalidInput, CodeInvalidBody,
			"request body is not a valid generation request", err.Error()))
		return
	}
	if err := body.ValidateGenerateFile(); err != nil {
		respondError(c, err)
		return
	}

	result, err := a.tally.GenerateReport(c.Request.Context(), user, &body.GenerateRequest)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, "path", result.Name)
}

// GetShare returns the cached reports and the admission counters.
func (a Api) GetShare(c *gin.Context) {
	respond(c, "share", a.tally.Snapshot())
}

// GetGeneratedHashes lists the fingerprints being rendered right now.
func (a Api) GetGeneratedHashes(c *gin.Context) {
	respond(c, "hashes", a.tally.Inflight().Snapshot())
}

// GetFileWeight returns the size of one of the caller's artifacts in bytes.
func (a Api) GetFileWeight(c *gin.Context) {
	user, ok := caller(c)
	if !ok {
		return
	}
	size, err := a.tally.ArtifactWeight(user.ID, c.Param("path"))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, "bytes", strconv.FormatInt(size, 10))
}

// DownloadReport streams one of the caller's artifacts as an attachment.
func (a Api) DownloadReport(c *gin.Context) {
	user, ok := caller(c)
	if !ok {
		return
	}
	path, err := a.tally.ResolveArtifact(user.ID, c.Param("path"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.FileAttachment(path, filepath.Base(path))
}
