package consts

import "errors"

var (
	ErrNotConnected   = errors.New("database not connected")
	ErrPoolNotReady   = errors.New("connection pool not initialized")
	ErrEngineNotReady = errors.New("orm engine not initialized")

	ErrUserNotFound        = errors.New("user not found")
	ErrAchievementNotFound = errors.New("achievement not found")

	ErrDBNotFound                = errors.New("not found")
	ErrDBUniqueViolation         = errors.New("unique violation")
	ErrDBCommitTransactionFailed = errors.New("commit failed")
	ErrDBBeginTransactionFailed  = errors.New("start transaction failed")
)
