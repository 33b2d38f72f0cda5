package rls

import (
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func TestWithTenantSetsTransactionLocalSetting(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB, DriverName: "postgres"}), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)

	mock.ExpectExec(regexp.QuoteMeta("SELECT set_config($1, $2, true)")).
		WithArgs(SettingName, "42").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, WithTenant(db, 42))
	require.NoError(t, mock.ExpectationsWereMet())
}
