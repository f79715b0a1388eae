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

package tally

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/blnkfinance/tally/internal/apierror"
	"github.com/blnkfinance/tally/internal/fingerprint"
)

// CodeInvalidArtifactName is returned for download paths that do not name an
// artifact.
const CodeInvalidArtifactName = 4334305

const artifactExt = ".xlsx"

// ArtifactName is the file name of the artifact of fingerprint.
func ArtifactName(fp string) string {
	return fp + artifactExt
}

// ArtifactPath is where the artifact of fingerprint owned by owner lives.
func (t *Tally) ArtifactPath(owner int64, fp string) string {
	return filepath.Join(t.cfg.ReportsDir, strconv.FormatInt(owner, 10), ArtifactName(fp))
}

func (t *Tally) artifactExists(owner int64, fp string) (string, bool) {
	path := t.ArtifactPath(owner, fp)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return path, false
	}
	return path, true
}

// ResolveArtifact maps a client supplied artifact name onto a path inside
// the owner's directory. Anything but "<fingerprint>.xlsx" is rejected.
func (t *Tally) ResolveArtifact(owner int64, name string) (string, error) {
	name = strings.TrimPrefix(strings.TrimSpace(name), "/")
	fp := strings.TrimSuffix(name, artifactExt)
	if !strings.HasSuffix(name, artifactExt) || !fingerprint.Valid(fp) {
		return "", apierror.NewAPIError(apierror.ErrInvalidInput, CodeInvalidArtifactName,
			"the requested path is not a report artifact", name)
	}

	path, ok := t.artifactExists(owner, fp)
	if !ok {
		return "", apierror.NewAPIError(apierror.ErrReportNotFound, apierror.CodeReportNotFound,
			"report file not found", name)
	}
	return path, nil
}

// ArtifactWeight returns the size in bytes of an owner's artifact.
func (t *Tally) ArtifactWeight(owner int64, name string) (int64, error) {
	path, err := t.ResolveArtifact(owner, name)
	if err != nil {
		return 0, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return 0, apierror.NewAPIError(apierror.ErrReportNotFound, apierror.CodeReportNotFound,
			"report file not found", err.Error())
	}
	return info.Size(), nil
}
