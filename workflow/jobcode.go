package workflow

import (
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/tracking_backend/models"
	"gorm.io/gorm"
)

// AcquireJobCodeLock serializes job code generation per year across instances
// using MySQL advisory locks.
// NOTE: GET_LOCK is connection-scoped, so this must be called on the same
// *gorm.DB that will insert the job.
func AcquireJobCodeLock(tx *gorm.DB, year int) error {
	lockName := fmt.Sprintf("jobcode:%d", year)
	var ok int
	if err := tx.Raw("SELECT GET_LOCK(?, 30)", lockName).Scan(&ok).Error; err != nil {
		return err
	}
	if ok != 1 {
		return fmt.Errorf("could not acquire job code lock for year=%d", year)
	}
	return nil
}

func ReleaseJobCodeLock(tx *gorm.DB, year int) {
	lockName := fmt.Sprintf("jobcode:%d", year)
	var _ok int
	_ = tx.Raw("SELECT RELEASE_LOCK(?)", lockName).Scan(&_ok).Error
}

// NextJobCode allocates the next DJ-<year>-<seq> code. Caller must be inside
// the transaction that also inserts the job so the advisory lock covers both.
func NextJobCode(tx *gorm.DB, now time.Time) (string, error) {
	year := now.UTC().Year()
	if err := AcquireJobCodeLock(tx, year); err != nil {
		return "", err
	}
	defer ReleaseJobCodeLock(tx, year)

	last, err := models.MaxJobSequenceForYear(tx, year)
	if err != nil {
		return "", err
	}
	return models.FormatJobCode(year, last+1), nil
}
