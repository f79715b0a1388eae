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

package backup

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/blnkfinance/tally/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUploader struct {
	inputs []*s3manager.UploadInput
	bodies [][]byte
	err    error
}

func (f *fakeUploader) Upload(in *s3manager.UploadInput, opts ...func(*s3manager.Uploader)) (*s3manager.UploadOutput, error) {
	return f.UploadWithContext(context.Background(), in, opts...)
}

func (f *fakeUploader) UploadWithContext(_ aws.Context, in *s3manager.UploadInput, _ ...func(*s3manager.Uploader)) (*s3manager.UploadOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.inputs = append(f.inputs, in)
	f.bodies = append(f.bodies, body)
	return &s3manager.UploadOutput{Location: "s3://" + *in.Bucket + "/" + *in.Key}, nil
}

func TestUploadFile(t *testing.T) {
	dir := t.TempDir()
	local := filepath.Join(dir, "abc.xlsx")
	require.NoError(t, os.WriteFile(local, []byte("xlsx"), 0o644))

	fake := &fakeUploader{}
	u := NewUploaderWithAPI(fake, "bucket", "/reports/")

	key := u.Key(42, "abc.xlsx")
	assert.Equal(t, "reports/42/abc.xlsx", key)

	require.NoError(t, u.UploadFile(context.Background(), local, key))
	require.Len(t, fake.inputs, 1)
	assert.Equal(t, "bucket", *fake.inputs[0].Bucket)
	assert.Equal(t, key, *fake.inputs[0].Key)
	assert.Equal(t, []byte("xlsx"), fake.bodies[0])
}

func TestUploadFileErrors(t *testing.T) {
	u := NewUploaderWithAPI(&fakeUploader{}, "bucket", "reports")
	assert.Error(t, u.UploadFile(context.Background(), filepath.Join(t.TempDir(), "missing.xlsx"), "k"))

	local := filepath.Join(t.TempDir(), "a.xlsx")
	require.NoError(t, os.WriteFile(local, []byte("x"), 0o644))
	u = NewUploaderWithAPI(&fakeUploader{err: errors.New("denied")}, "bucket", "reports")
	err := u.UploadFile(context.Background(), local, "k")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "denied")
}

func TestArchiveReports(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "42"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "42", "fp1.xlsx"), []byte("one"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "42", "notes.txt"), []byte("skip"), 0o644))

	fake := &fakeUploader{}
	u := NewUploaderWithAPI(fake, "bucket", "reports")

	key, err := u.ArchiveReports(context.Background(), dir, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "reports/archives/2024-03-05.zip", key)

	require.Len(t, fake.bodies, 1)
	zr, err := zip.NewReader(bytes.NewReader(fake.bodies[0]), int64(len(fake.bodies[0])))
	require.NoError(t, err)
	require.Len(t, zr.File, 1)
	assert.Equal(t, "42/fp1.xlsx", zr.File[0].Name)

	_, statErr := os.Stat(filepath.Join(os.TempDir(), "tally-2024-03-05.zip"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestNewUploaderWithEndpoint(t *testing.T) {
	u, err := NewUploader(config.BackupConfig{
		Enabled:            true,
		AwsAccessKeyId:     "id",
		AwsSecretAccessKey: "secret",
		S3Endpoint:         "http://localhost:9000",
		S3BucketName:       "tally",
		S3Region:           "us-east-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "tally", u.bucket)
	assert.Equal(t, "reports/1/x.xlsx", u.Key(1, "x.xlsx"))
}
