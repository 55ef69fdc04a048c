package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkadima1/sharewizard-server/internal/testutil"
)

func TestJobRepository_MarkProcessing(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewJobRepository(db)
	user := testutil.TestUser(t, db)
	generation := testutil.TestGeneration(t, db, user.ID)
	job := testutil.TestJob(t, db, user.ID, generation.ID, "queued")

	err := repo.MarkProcessing(job.ID)
	require.NoError(t, err)

	updated, err := repo.GetByID(job.ID)
	require.NoError(t, err)
	assert.Equal(t, "processing", updated.Status)
	require.NotNil(t, updated.StartedAt)
	assert.Nil(t, updated.CompletedAt)
}

func TestJobRepository_MarkCompleted(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewJobRepository(db)
	user := testutil.TestUser(t, db)
	generation := testutil.TestGeneration(t, db, user.ID)
	job := testutil.TestJob(t, db, user.ID, generation.ID, "processing")

	err := repo.MarkCompleted(job.ID)
	require.NoError(t, err)

	updated, err := repo.GetByID(job.ID)
	require.NoError(t, err)
	assert.Equal(t, "completed", updated.Status)
	require.NotNil(t, updated.CompletedAt)
}

func TestJobRepository_MarkFailed(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewJobRepository(db)
	user := testutil.TestUser(t, db)
	generation := testutil.TestGeneration(t, db, user.ID)
	job := testutil.TestJob(t, db, user.ID, generation.ID, "processing")

	err := repo.MarkFailed(job.ID, "generation timed out")
	require.NoError(t, err)

	updated, err := repo.GetByID(job.ID)
	require.NoError(t, err)
	assert.Equal(t, "failed", updated.Status)
	assert.Equal(t, "generation timed out", updated.ErrorMessage)
	require.NotNil(t, updated.CompletedAt)
}

func TestJobRepository_GetByGenerationID(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewJobRepository(db)
	user := testutil.TestUser(t, db)
	generation := testutil.TestGeneration(t, db, user.ID)
	job := testutil.TestJob(t, db, user.ID, generation.ID, "queued")

	found, err := repo.GetByGenerationID(generation.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, found.ID)
}
