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
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/blnkfinance/tally/internal/apierror"
	"github.com/blnkfinance/tally/internal/files"
	"github.com/blnkfinance/tally/internal/fingerprint"
	redlock "github.com/blnkfinance/tally/internal/lock"
	"github.com/blnkfinance/tally/internal/xlsx"
	"github.com/blnkfinance/tally/model"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

const (
	artifactLockTTL  = 2 * time.Minute
	artifactLockWait = 30 * time.Second
)

// GenerateResult describes a finished generation.
type GenerateResult struct {
	Fingerprint string
	Name        string
	Path        string
	Existing    bool
}

type boundRequest struct {
	kind    model.ReportKind
	orgID   string
	filters []model.Filter
	ranges  []model.DateRange
}

// GenerateReport builds the artifact of req for user and returns where it
// was written. An artifact already on disk is returned without touching the
// admission gate.
//
// Parameters:
// - ctx context.Context: Scopes the file registry and rendering calls. Merges outlive it.
// - user *model.UserInfo: The caller, resolved from the token.
// - req *model.GenerateRequest: The validated request.
//
// Returns:
// - *GenerateResult: The fingerprint and artifact location.
// - error: An apierror.APIError describing the first failure.
func (t *Tally) GenerateReport(ctx context.Context, user *model.UserInfo, req *model.GenerateRequest) (*GenerateResult, error) {
	ctx, span := otel.Tracer("tally.generate").Start(ctx, "Generate report")
	defer span.End()

	bound, err := t.bind(ctx, user, req)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	fp := fingerprintOf(bound)
	span.SetAttributes(attribute.String("tally.fingerprint", fp))

	if path, ok := t.artifactExists(user.ID, fp); ok {
		logrus.Infof("report %s already exists for user %d", fp, user.ID)
		return &GenerateResult{Fingerprint: fp, Name: ArtifactName(fp), Path: path, Existing: true}, nil
	}

	release, ok := t.admission.Enter()
	if !ok {
		return nil, apierror.NewAPIError(apierror.ErrAdmissionLimitExceeded, apierror.CodeAdmissionLimit,
			"the limit of simultaneous generations was exceeded", nil)
	}
	defer release()

	if t.inflight.Contains(fp) {
		return nil, duplicateInFlight(fp)
	}

	report := t.attach(fp, bound)

	if err := t.aggregate(ctx, report, bound); err != nil {
		span.RecordError(err)
		return nil, err
	}

	path, err := t.persist(ctx, user, fp, report, req, bound)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	logrus.Infof("report generation finished for user %d", user.ID)
	return &GenerateResult{Fingerprint: fp, Name: ArtifactName(fp), Path: path}, nil
}

func fingerprintOf(bound boundRequest) string {
	return fingerprint.Compute(fingerprint.FromFilters(bound.kind, bound.orgID, bound.filters, bound.ranges))
}

func duplicateInFlight(fp string) error {
	return apierror.NewAPIError(apierror.ErrDuplicateFingerprintInFlight, apierror.CodeDuplicateInFlight,
		"the report cannot be generated because it is already being generated", fp)
}

// attach returns the cached report of fp, creating it on first reference.
func (t *Tally) attach(fp string, bound boundRequest) *model.Report {
	if report, ok := t.reports.Lookup(fp); ok {
		report.SetOrganizationID(bound.orgID)
		return report
	}
	report, inserted := t.reports.Insert(fp, model.NewReport(bound.kind, bound.orgID, t.now()))
	if !inserted {
		report.SetOrganizationID(bound.orgID)
	}
	return report
}

// bind resolves the registry rows of every filter and checks the caller may
// use them.
func (t *Tally) bind(ctx context.Context, user *model.UserInfo, req *model.GenerateRequest) (boundRequest, error) {
	kind := req.Kind()
	if kind == model.KindUnknown {
		return boundRequest{}, apierror.NewAPIError(apierror.ErrInvalidInput, apierror.CodeUnknownReportType,
			"unknown report type: Unknown", nil)
	}
	if user == nil || user.ID <= 0 {
		return boundRequest{}, apierror.NewAPIError(apierror.ErrUnauthorized, apierror.CodeMissingToken,
			"caller is not identified", nil)
	}

	filters := make([]model.Filter, len(req.Filters))
	copy(filters, req.Filters)
	sort.Slice(filters, func(i, j int) bool { return filters[i].ID < filters[j].ID })

	ids := make([]uint32, len(filters))
	for i := range filters {
		filters[i].PaymentSystems = append([]string(nil), filters[i].PaymentSystems...)
		filters[i].NormalizePaymentSystems()
		ids[i] = filters[i].ID
	}

	registry, err := t.resolveFiles(ctx, user.ID, ids)
	if err != nil {
		return boundRequest{}, err
	}

	ranges := make([]model.DateRange, 0, len(filters))
	for i := range filters {
		file := registry[filters[i].ID]
		if err := filters[i].Bind(file.Kind(), t.sourcePath(file.Path)); err != nil {
			return boundRequest{}, err
		}
		ranges = append(ranges, model.DateRange{From: file.DateFrom, To: file.DateTo})
	}

	return boundRequest{kind: kind, orgID: req.OrganizationID(), filters: filters, ranges: ranges}, nil
}

func (t *Tally) resolveFiles(ctx context.Context, owner int64, ids []uint32) (map[uint32]model.FileInfo, error) {
	maxID, err := t.datasource.GetMaxFileID(ctx)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		if int64(id) > maxID {
			return nil, apierror.NewAPIError(apierror.ErrInvalidInput, apierror.CodeFileIDOutOfRange,
				fmt.Sprintf("file id %d does not exist", id), nil)
		}
	}

	rows, err := t.datasource.GetFilesByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	registry := make(map[uint32]model.FileInfo, len(rows))
	for _, row := range rows {
		registry[row.ID] = row
	}

	for _, id := range ids {
		file, ok := registry[id]
		if !ok {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, apierror.CodeFileAccess,
				fmt.Sprintf("file id %d is not registered", id), nil)
		}
		if err := checkSegment(file); err != nil {
			return nil, err
		}
		if file.OwnerID != owner {
			return nil, apierror.NewAPIError(apierror.ErrForbidden, apierror.CodeFileNotOwned,
				fmt.Sprintf("file id %d does not belong to the caller", id), nil)
		}
	}
	return registry, nil
}

func checkSegment(file model.FileInfo) error {
	switch file.Segment {
	case model.SegmentReady:
		return nil
	case model.SegmentCorrupted:
		return apierror.NewAPIError(apierror.ErrInvalidInput, apierror.CodeFileCorrupted,
			fmt.Sprintf("file %d is corrupted", file.ID), nil)
	case model.SegmentPreparing:
		return apierror.NewAPIError(apierror.ErrInvalidInput, apierror.CodeFilePreparing,
			fmt.Sprintf("file %d is being prepared", file.ID), nil)
	case model.SegmentGenerating:
		return apierror.NewAPIError(apierror.ErrInvalidInput, apierror.CodeFileGenerating,
			fmt.Sprintf("file %d is still being generated", file.ID), nil)
	default:
		return apierror.NewAPIError(apierror.ErrInvalidInput, apierror.CodeFileSegmentUnknown,
			fmt.Sprintf("file %d has an unknown state %d", file.ID, file.Segment), nil)
	}
}

func (t *Tally) sourcePath(path string) string {
	if t.cfg.SourceFilesDir == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(t.cfg.SourceFilesDir, path)
}

type categoryBatch struct {
	category model.Category
	sources  []files.Source
	total    int
}

// aggregate chunks every source file and merges the chunks the report does
// not hold yet. Chunk ids are numbered across all files of a category in
// filter id order, so a later caller derives the same ids.
func (t *Tally) aggregate(ctx context.Context, report *model.Report, bound boundRequest) error {
	var batches []*categoryBatch
	byCategory := make(map[model.Category]*categoryBatch)

	for i := range bound.filters {
		filter := &bound.filters[i]
		src, err := files.ReadChunks(ctx, filter, bound.orgID, bound.kind, t.cfg.ChunkSize)
		if err != nil {
			return err
		}
		src.Window = bound.ranges[i]

		batch, ok := byCategory[filter.Category]
		if !ok {
			batch = &categoryBatch{category: filter.Category}
			byCategory[filter.Category] = batch
			batches = append(batches, batch)
		}
		for j := range src.Chunks {
			src.Chunks[j].ID += uint32(batch.total)
		}
		batch.total += len(src.Chunks)
		batch.sources = append(batch.sources, src)
	}

	for _, batch := range batches {
		for _, src := range batch.sources {
			if err := t.scheduler.Run(ctx, report, batch.category, src, batch.total); err != nil {
				return err
			}
		}
	}

	report.MarkFullyRead()
	return nil
}

// persist renders the report and writes it under the owner's directory.
func (t *Tally) persist(ctx context.Context, user *model.UserInfo, fp string, report *model.Report, req *model.GenerateRequest, bound boundRequest) (string, error) {
	token, ok := t.inflight.Begin(fp)
	if !ok {
		return "", duplicateInFlight(fp)
	}
	defer t.inflight.Done(fp, token)

	if t.redis != nil {
		locker := redlock.NewLocker(t.redis, fp, model.GenerationID(fp))
		if err := locker.WaitLock(ctx, artifactLockTTL, artifactLockWait); err != nil {
			return "", apierror.NewAPIError(apierror.ErrDuplicateFingerprintInFlight, apierror.CodeDuplicateInFlight,
				"the report is being written by another instance", err.Error())
		}
		defer func() {
			if err := locker.Unlock(context.WithoutCancel(ctx)); err != nil {
				logrus.Warnf("artifact lock release failed: %v", err)
			}
		}()
	}

	if path, ok := t.artifactExists(user.ID, fp); ok {
		return path, nil
	}

	_, span := otel.Tracer("tally.generate").Start(ctx, "Render artifact")
	defer span.End()

	workbook, err := t.renderer.Render(report, xlsx.Options{
		Author:                 responsible(user),
		MonthlySubscriptionFee: req.Fee(),
		Periods:                bound.ranges,
	})
	if err != nil {
		return "", err
	}
	defer func() {
		if err := workbook.Close(); err != nil {
			logrus.Warnf("closing workbook %s: %v", fp, err)
		}
	}()

	path := t.ArtifactPath(user.ID, fp)
	if err := xlsx.Save(workbook, path); err != nil {
		return "", err
	}

	if t.uploader != nil {
		if err := t.uploader.UploadFile(ctx, path, t.uploader.Key(user.ID, ArtifactName(fp))); err != nil {
			logrus.Warnf("artifact backup failed for %s: %v", fp, err)
		}
	}
	return path, nil
}

func responsible(user *model.UserInfo) string {
	return strings.TrimSpace(user.FirstName + " " + user.LastName)
}
