package service

import (
	"context"
	"errors"
	"learnhub_backend/internal/config"
	"learnhub_backend/internal/util"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImportFromLocalStorage(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	cfg := config.Default()
	cfg.Storage.Type = "local"
	cfg.Storage.LocalPath = t.TempDir()
	env.pool.Storage = NewStorageService(cfg)

	body := "stem,type,marks,topic_id,options,correct\nPick one,single_best_answer,1," + uintString(env.catalog.Topics[0].ID) + ",a|b,1\n"
	require.NoError(t, env.pool.Storage.Provider.Upload(ctx, "imports/../batch.csv", strings.NewReader(body), int64(len(body)), util.MimeCSV))

	report, err := env.pool.ImportFromStorage(ctx, admin, "batch.csv")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Imported)
	assert.Empty(t, report.Errors)

	_, err = env.pool.ImportFromStorage(ctx, admin, "missing.csv")
	assert.True(t, errors.Is(err, util.ErrNotFound))

	_, err = env.pool.ImportFromStorage(ctx, student, "batch.csv")
	assert.True(t, errors.Is(err, util.ErrForbidden))
}
