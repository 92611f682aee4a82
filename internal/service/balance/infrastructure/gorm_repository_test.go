package infrastructure

import (
	"context"
	"testing"

	"commerce/internal/service/balance/domain"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(gormmysql.New(gormmysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	return db, mock
}

func TestFindByUserIDNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewGormBalanceRepository(db)

	mock.ExpectQuery("SELECT \\* FROM `balances` WHERE user_id = \\?").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "amount", "version"}))

	_, err := repo.FindByUserID(context.Background(), 42)
	assert.ErrorIs(t, err, domain.ErrBalanceNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveUsesOptimisticLocking(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewGormBalanceRepository(db)

	balance := &domain.Balance{UserID: 42, Amount: 900, Version: 3}

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `balances` SET").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Save(context.Background(), balance))
	assert.Equal(t, int64(4), balance.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveReturnsConflictWhenVersionIsStale(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewGormBalanceRepository(db)

	balance := &domain.Balance{UserID: 42, Amount: 900, Version: 3}

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `balances` SET").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := repo.Save(context.Background(), balance)
	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.Equal(t, int64(3), balance.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}
