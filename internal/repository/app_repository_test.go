package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/famtime/rewards-api/internal/models"
)

func newAppRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func appCatalogColumns() []string {
	return []string{"id", "family_id", "app_id", "name", "category", "points_per_hour", "conversion_rate", "active", "created_at", "updated_at"}
}

func TestAppRepositoryCreateAndFindByFamilyApp(t *testing.T) {
	db, mock, cleanup := newAppRepoMock(t)
	defer cleanup()

	repo := NewAppRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO app_categorizations")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	app := &models.AppCategorization{
		FamilyID:      "fam-1",
		AppID:         "com.example.math",
		Name:          "Math Quest",
		Category:      models.CategoryLearning,
		PointsPerHour: 20,
		Active:        true,
	}
	require.NoError(t, repo.Create(context.Background(), app))
	require.NotEmpty(t, app.ID)
	require.False(t, app.UpdatedAt.IsZero())

	now := time.Now().UTC()
	rows := sqlmock.NewRows(appCatalogColumns()).
		AddRow(app.ID, "fam-1", "com.example.math", "Math Quest", "learning", 20, 0.0, true, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, family_id, app_id, name, category")).
		WithArgs("fam-1", "com.example.math").
		WillReturnRows(rows)

	found, err := repo.FindByFamilyApp(context.Background(), "fam-1", "com.example.math")
	require.NoError(t, err)
	require.Equal(t, app.ID, found.ID)
	require.Equal(t, models.CategoryLearning, found.Category)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppRepositoryListFiltersByCategoryAndActive(t *testing.T) {
	db, mock, cleanup := newAppRepoMock(t)
	defer cleanup()

	repo := NewAppRepository(db)
	now := time.Now().UTC()
	rows := sqlmock.NewRows(appCatalogColumns()).
		AddRow("cat-1", "fam-1", "com.example.game", "Blocky", "reward", 0, 10.0, true, now, now)
	active := true
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, family_id, app_id, name, category")).
		WithArgs("fam-1", "reward", true).
		WillReturnRows(rows)

	apps, err := repo.List(context.Background(), models.AppFilter{
		FamilyID: "fam-1",
		Category: models.CategoryReward,
		Active:   &active,
	})
	require.NoError(t, err)
	require.Len(t, apps, 1)
	require.Equal(t, 10.0, apps[0].ConversionRate)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppRepositoryUpdate(t *testing.T) {
	db, mock, cleanup := newAppRepoMock(t)
	defer cleanup()

	repo := NewAppRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE app_categorizations")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	app := &models.AppCategorization{
		ID:             "cat-1",
		FamilyID:       "fam-1",
		AppID:          "com.example.game",
		Name:           "Blocky",
		Category:       models.CategoryReward,
		ConversionRate: 12.0,
		Active:         false,
	}
	before := app.UpdatedAt
	require.NoError(t, repo.Update(context.Background(), app))
	require.True(t, app.UpdatedAt.After(before))
	require.NoError(t, mock.ExpectationsWereMet())
}
