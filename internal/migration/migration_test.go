package migration

import (
	"io/fs"
	"testing"

	"github.com/smallbiznis/labinventory/internal/system/domain"
	pkgdb "github.com/smallbiznis/labinventory/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrationsPresent(t *testing.T) {
	for _, dialect := range []string{pkgdb.TypePostgres, pkgdb.TypeMySQL} {
		files, err := fs.Glob(embeddedMigrations, migrationsDir+"/"+dialect+"/*.up.sql")
		require.NoError(t, err)
		assert.NotEmpty(t, files, dialect)
	}
}

func TestRunSQLiteMigratesModels(t *testing.T) {
	conn, err := pkgdb.NewTest(t.Name())
	require.NoError(t, err)

	require.NoError(t, Run(conn, pkgdb.TypeSQLite))
	require.NoError(t, Run(conn, pkgdb.TypeSQLite))
	assert.True(t, conn.Migrator().HasTable(&domain.System{}))
	assert.True(t, conn.Migrator().HasIndex(&domain.System{}, "IDCode"))
	assert.True(t, conn.Migrator().HasColumn(&domain.System{}, "QRAttemptedAt"))
}

func TestRunMigrationsRejectsNilHandle(t *testing.T) {
	assert.Error(t, RunMigrations(nil, pkgdb.TypePostgres))
	assert.Error(t, Run(nil, pkgdb.TypeSQLite))
}
