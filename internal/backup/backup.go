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

// Package backup copies rendered report artifacts to S3.
package backup

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"
	"github.com/blnkfinance/tally/config"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Uploader stores artifacts under a key prefix of one bucket.
type Uploader struct {
	api    s3manageriface.UploaderAPI
	bucket string
	prefix string
}

// NewUploader builds an uploader from the backup settings.
func NewUploader(cnf config.BackupConfig) (*Uploader, error) {
	awsCfg := &aws.Config{
		Region:      aws.String(cnf.S3Region),
		Credentials: credentials.NewStaticCredentials(cnf.AwsAccessKeyId, cnf.AwsSecretAccessKey, ""),
	}
	if cnf.S3Endpoint != "" {
		awsCfg.Endpoint = aws.String(cnf.S3Endpoint)
		awsCfg.S3ForcePathStyle = aws.Bool(true)
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, errors.Wrap(err, "creating aws session")
	}
	return NewUploaderWithAPI(s3manager.NewUploader(sess), cnf.S3BucketName, "reports"), nil
}

// NewUploaderWithAPI wires an existing s3manager uploader.
func NewUploaderWithAPI(api s3manageriface.UploaderAPI, bucket, prefix string) *Uploader {
	return &Uploader{api: api, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

// Key returns the object key of an artifact owned by owner.
func (u *Uploader) Key(owner int64, name string) string {
	return path.Join(u.prefix, fmt.Sprintf("%d", owner), name)
}

// UploadFile sends the file at localPath to key.
func (u *Uploader) UploadFile(ctx context.Context, localPath, key string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return errors.Wrapf(err, "opening %s", localPath)
	}
	defer f.Close()

	out, err := u.api.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
		Body:   f,
	})
	if err != nil {
		return errors.Wrapf(err, "uploading %s", key)
	}
	logrus.Infof("artifact uploaded to %s", out.Location)
	return nil
}

// ArchiveReports zips every artifact under reportsDir and uploads the archive
// as <prefix>/archives/<day>.zip. The local zip is removed afterwards.
func (u *Uploader) ArchiveReports(ctx context.Context, reportsDir string, now time.Time) (string, error) {
	day := now.Format("2006-01-02")
	zipFile := filepath.Join(os.TempDir(), "tally-"+day+".zip")

	if err := zipDir(reportsDir, zipFile); err != nil {
		return "", err
	}
	defer func() {
		if err := os.Remove(zipFile); err != nil {
			logrus.Warnf("could not remove %s: %v", zipFile, err)
		}
	}()

	key := path.Join(u.prefix, "archives", day+".zip")
	if err := u.UploadFile(ctx, zipFile, key); err != nil {
		return "", err
	}
	return key, nil
}

func zipDir(srcDir, destZip string) error {
	zipFile, err := os.Create(destZip)
	if err != nil {
		return err
	}
	defer zipFile.Close()

	writer := zip.NewWriter(zipFile)
	defer writer.Close()

	return filepath.Walk(srcDir, func(filePath string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.HasSuffix(info.Name(), ".xlsx") {
			return nil
		}

		relPath, err := filepath.Rel(srcDir, filePath)
		if err != nil {
			return err
		}
		zipFileWriter, err := writer.Create(filepath.ToSlash(relPath))
		if err != nil {
			return err
		}

		srcFile, err := os.Open(filePath)
		if err != nil {
			return err
		}
		defer srcFile.Close()

		_, err = io.Copy(zipFileWriter, srcFile)
		return err
	})
}
