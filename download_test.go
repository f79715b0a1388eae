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
	"testing"
	"time"

	"github.com/blnkfinance/tally/internal/apierror"
	"github.com/blnkfinance/tally/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleFingerprint = "0123456789abcdef"

func writeArtifact(t *testing.T, f *fixture, owner int64, fp string, body string) string {
	t.Helper()
	path := f.tally.ArtifactPath(owner, fp)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestResolveArtifact(t *testing.T) {
	f := newFixture(t, 10)
	path := writeArtifact(t, f, 42, sampleFingerprint, "xlsx-bytes")

	got, err := f.tally.ResolveArtifact(42, sampleFingerprint+".xlsx")
	require.NoError(t, err)
	assert.Equal(t, path, got)

	got, err = f.tally.ResolveArtifact(42, "/"+sampleFingerprint+".xlsx")
	require.NoError(t, err)
	assert.Equal(t, path, got)

	_, err = f.tally.ResolveArtifact(7, sampleFingerprint+".xlsx")
	requireAPIError(t, err, apierror.ErrReportNotFound, apierror.CodeReportNotFound)
}

func TestResolveArtifactRejectsNames(t *testing.T) {
	f := newFixture(t, 10)
	writeArtifact(t, f, 42, sampleFingerprint, "x")

	for _, name := range []string{
		"",
		sampleFingerprint,
		sampleFingerprint + ".csv",
		"../42/" + sampleFingerprint + ".xlsx",
		"0123456789ABCDEF.xlsx",
		"0123.xlsx",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := f.tally.ResolveArtifact(42, name)
			requireAPIError(t, err, apierror.ErrInvalidInput, CodeInvalidArtifactName)
		})
	}
}

func TestArtifactWeight(t *testing.T) {
	f := newFixture(t, 10)
	writeArtifact(t, f, 42, sampleFingerprint, "twelve bytes")

	size, err := f.tally.ArtifactWeight(42, sampleFingerprint+".xlsx")
	require.NoError(t, err)
	assert.Equal(t, int64(12), size)

	_, err = f.tally.ArtifactWeight(42, "fedcba9876543210.xlsx")
	requireAPIError(t, err, apierror.ErrReportNotFound, apierror.CodeReportNotFound)
}

func TestSnapshot(t *testing.T) {
	f := newFixture(t, 3)
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	report := model.NewReport(model.KindMerchant, "501", created)
	report.EnsureItem(model.CategoryPayments, &model.Filter{ID: 1, Category: model.CategoryPayments})
	f.tally.Reports().Insert(sampleFingerprint, report)
	f.tally.Inflight().Begin(sampleFingerprint)
	require.True(t, f.tally.Admission().TryEnter())
	defer f.tally.Admission().Leave()

	share := f.tally.Snapshot()
	assert.Equal(t, 1, share.GeneratedNow)
	assert.Equal(t, 3, share.MaxGenerations)
	assert.Equal(t, []string{sampleFingerprint}, share.GeneratingHashes)
	require.Contains(t, share.Reports, sampleFingerprint)
	assert.Equal(t, "501", share.Reports[sampleFingerprint].OrganizationID)
	assert.Equal(t, created, share.Reports[sampleFingerprint].CreatedAt)
	assert.False(t, share.Reports[sampleFingerprint].FullyRead)
}
