package db

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/rampartdb/rampart/config"
	"github.com/rampartdb/rampart/consts"
)

func newMockDatabase(t *testing.T) (*Database, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { mockDB.Close() })

	orm, err := gorm.Open(gormpostgres.New(gormpostgres.Config{Conn: mockDB}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to open ORM over sqlmock: %v", err)
	}

	d := New(&config.DatabaseConfig{})
	d.state = StateConnected
	d.sqlDB = mockDB
	d.orm = orm

	return d, mock
}

func TestWithSessionCommitsOnSuccess(t *testing.T) {
	d, mock := newMockDatabase(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE users").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := d.WithSession(context.Background(), func(tx *gorm.DB) error {
		return tx.Exec("UPDATE users SET coins = coins + 1 WHERE user_id = 42").Error
	})
	if err != nil {
		t.Errorf("Expected nil error, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestWithSessionRollsBackOnError(t *testing.T) {
	d, mock := newMockDatabase(t)

	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("boom")
	err := d.WithSession(context.Background(), func(tx *gorm.DB) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("Expected the callback error back, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestWithSessionRollsBackOnPanic(t *testing.T) {
	d, mock := newMockDatabase(t)

	mock.ExpectBegin()
	mock.ExpectRollback()

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("Expected the panic to propagate")
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("Unmet expectations: %v", err)
		}
	}()

	_ = d.WithSession(context.Background(), func(tx *gorm.DB) error {
		panic("session scope panic")
	})
}

func TestWithSessionNotConnected(t *testing.T) {
	d := New(&config.DatabaseConfig{})

	err := d.WithSession(context.Background(), func(tx *gorm.DB) error {
		t.Fatal("Callback must not run without an engine")
		return nil
	})
	if !errors.Is(err, consts.ErrEngineNotReady) {
		t.Errorf("Expected ErrEngineNotReady, got %v", err)
	}
}

func TestWithSessionTransactionCommit(t *testing.T) {
	d, mock := newMockDatabase(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO command_usage").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := d.WithSessionTransaction(context.Background(), func(tx *gorm.DB) error {
		return tx.Exec("INSERT INTO command_usage (user_id, command_name) VALUES (1, 'ping')").Error
	})
	if err != nil {
		t.Errorf("Expected nil error, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestWithSessionTransactionRollback(t *testing.T) {
	d, mock := newMockDatabase(t)

	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("constraint violated")
	err := d.WithSessionTransaction(context.Background(), func(tx *gorm.DB) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("Expected the callback error back, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}
