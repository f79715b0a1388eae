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

package files

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/blnkfinance/tally/internal/apierror"
	"github.com/blnkfinance/tally/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const paymentsCSV = `Провайдер,provider_id,Статус,Режим,Сумма,Комиссия,Комиссия EOPS,Комиссия COMANYNAME,Комиссия Bank,Комиссия Partner,Дата транзакции,Комиссия Payment,Вендор,Вендор ID,Платёжная система
Yandex,77,Завершена,Боевой,100,1,0,0,0,0,2024-01-01 10:00:00,0,Shop,501,Uzcard
Yandex,77,Ошибка,Боевой,100,1,0,0,0,0,2024-01-01 11:00:00,0,Shop,501,Uzcard
Yandex,77,Завершена,Боевой,50,1,0,0,0,0,2024-01-02 10:00:00,0,Shop,501,Humo
Uber,78,Завершена,Боевой,10,1,0,0,0,0,2024-01-02 12:00:00,0,Cafe,502,Uzcard
Yandex,77,Завершена,Боевой,20,1,0,0,0,0,2024-01-03 10:00:00,0,Shop,501,Uzcard
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func paymentsFilter(path string) *model.Filter {
	f := &model.Filter{ID: 7}
	if err := f.Bind("pay", path); err != nil {
		panic(err)
	}
	return f
}

func TestReadChunksFiltersAndSplits(t *testing.T) {
	path := writeFile(t, "pay.csv", paymentsCSV)
	completed := model.StatusCompleted
	filter := paymentsFilter(path)
	filter.Status = &completed

	src, err := ReadChunks(context.Background(), filter, "77", model.KindAgent, 2)
	require.NoError(t, err)

	require.Len(t, src.Chunks, 2)
	assert.Equal(t, uint32(0), src.Chunks[0].ID)
	assert.Len(t, src.Chunks[0].Rows, 2)
	assert.Equal(t, uint32(1), src.Chunks[1].ID)
	assert.Len(t, src.Chunks[1].Rows, 1)
	assert.Equal(t, "20", src.Chunks[1].Rows[0][4])
	assert.Same(t, filter, src.Filter)
}

func TestReadChunksDefaultSize(t *testing.T) {
	path := writeFile(t, "pay.csv", paymentsCSV)
	src, err := ReadChunks(context.Background(), paymentsFilter(path), "", model.KindAgent, 0)
	require.NoError(t, err)
	require.Len(t, src.Chunks, 1)
	assert.Len(t, src.Chunks[0].Rows, 5)
}

func TestReadChunksPaymentSystems(t *testing.T) {
	path := writeFile(t, "pay.csv", paymentsCSV)
	filter := paymentsFilter(path)
	filter.PaymentSystems = []string{"humo"}

	src, err := ReadChunks(context.Background(), filter, "", model.KindMerchant, 10)
	require.NoError(t, err)
	require.Len(t, src.Chunks, 1)
	assert.Len(t, src.Chunks[0].Rows, 1)
}

func TestReadChunksNoMatch(t *testing.T) {
	path := writeFile(t, "pay.csv", paymentsCSV)
	_, err := ReadChunks(context.Background(), paymentsFilter(path), "999", model.KindAgent, 10)

	apiErr, ok := apierror.As(err)
	require.True(t, ok)
	assert.Equal(t, apierror.ErrChunkEmpty, apiErr.Kind)
	assert.Equal(t, apierror.CodeChunkEmpty, apiErr.Code)
}

func TestReadChunksMissingFile(t *testing.T) {
	_, err := ReadChunks(context.Background(), paymentsFilter(filepath.Join(t.TempDir(), "nope.csv")), "", model.KindAgent, 10)
	apiErr, ok := apierror.As(err)
	require.True(t, ok)
	assert.Equal(t, apierror.CodeFileAccess, apiErr.Code)
}

func TestBuildChunksMissingColumn(t *testing.T) {
	content := strings.Replace(paymentsCSV, "Комиссия Payment", "Something", 1)
	_, err := BuildChunks(context.Background(), strings.NewReader(content), paymentsFilter(""), "", model.KindAgent, 10)

	apiErr, ok := apierror.As(err)
	require.True(t, ok)
	assert.Equal(t, apierror.ErrMissingRequiredColumn, apiErr.Kind)
	assert.Equal(t, 423137, apiErr.Code)
}

func TestBuildChunksSemicolonDelimited(t *testing.T) {
	content := strings.ReplaceAll(paymentsCSV, ",", ";")
	src, err := BuildChunks(context.Background(), strings.NewReader(content), paymentsFilter(""), "78", model.KindTaxiCompany, 10)
	require.NoError(t, err)
	require.Len(t, src.Chunks, 1)
	assert.Equal(t, "Uber", src.Chunks[0].Rows[0][0])
}

func TestDetectDelimiter(t *testing.T) {
	assert.Equal(t, ';', DetectDelimiter([]byte("a;b;c\n1,2;3")))
	assert.Equal(t, ',', DetectDelimiter([]byte("a,b,c")))
}
