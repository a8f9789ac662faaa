package workflow

import (
	"errors"

	mysqlDriver "github.com/go-sql-driver/mysql"
)

// Sentinel errors for the custody workflow. Handlers map these to HTTP
// status codes with errors.Is; all of them are detected before any write.
var (
	ErrInvalidTransition        = errors.New("transition not allowed from current status")
	ErrInvalidHoldResolution    = errors.New("on-hold item can only move to the next logical step")
	ErrNoPriorStatus            = errors.New("cannot resolve on-hold without a prior status")
	ErrTerminalStatus           = errors.New("item is in a terminal status")
	ErrOverrideForbidden        = errors.New("admin override required")
	ErrOverrideReasonRequired   = errors.New("override reason required")
	ErrRoleNotPermitted         = errors.New("role cannot perform this transition")
	ErrBatchRequired            = errors.New("batch reference required for dispatch")
	ErrFactoryRequired          = errors.New("factory required for dispatch")
	ErrFactoryMismatch          = errors.New("batch factory does not match")
	ErrFactoryInactive          = errors.New("factory is inactive")
	ErrDuplicateBatchMembership = errors.New("item already in batch")
	ErrBatchClosed              = errors.New("batch is closed")
	ErrBatchEmpty               = errors.New("batch has no items")
	ErrItemsNotDispatched       = errors.New("all batch items must be dispatched")
	ErrItemsNotReturned         = errors.New("all batch items must be back at the shop")
	ErrReasonRequired           = errors.New("edit reason required")
	ErrVoucherRequired          = errors.New("voucher number is required")
)

func isDuplicateKeyErr(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return false
}
