package models

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	sqlite "github.com/Daskott/gorm-sqlite-cipher"
	"github.com/bestsecurity/meetman/server/logger"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

// ErrUniqueConstraint is returned when a create/update collides with a
// uniqueness rule at the storage layer e.g. 2 customers racing on the same
// primary email. Callers are expected to re-lookup & reuse the winning record.
var ErrUniqueConstraint = errors.New("record violates a uniqueness constraint")

var (
	db   *gorm.DB
	logg = logger.NewLogger()
)

func Initialize(dbPath, passPhrase string) error {
	var err error

	db, err = gorm.Open(sqlite.Open(sqliteDSN(dbPath, passPhrase)), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		return fmt.Errorf("unable to open sqlite database: %v", err)
	}

	return autoMigrate()
}

// InitializeTestDb sets up a throw-away sqlite db for package tests.
func InitializeTestDb() {
	// one db file per test process, so packages under test don't collide
	dbPath := filepath.Join(os.TempDir(), fmt.Sprintf("meetman_test_%v.db", os.Getpid()))
	os.Remove(dbPath)

	err := Initialize(dbPath, "test-passphrase")
	if err != nil {
		logg.Panic(err)
	}
}

func autoMigrate() error {
	err := db.AutoMigrate(
		&Role{},
		&JobStatus{},
		&BookingStatus{},

		&User{},
		&Job{},

		&Customer{},
		&CustomerEmail{},
		&CustomerPhone{},
		&Booking{},
	)
	if err != nil {
		return err
	}

	seedRoles()
	seedJobStatuses()
	seedBookingStatuses()

	return nil
}

func seedRoles() {
	if err := db.First(&Role{}).Error; errors.Is(err, gorm.ErrRecordNotFound) {
		logg.Info("Inserting seed data into 'roles'")
		db.Create(&[]Role{{Name: ADMIN_USER_ROLE}, {Name: BASIC_USER_ROLE}})
	}
}

func seedJobStatuses() {
	if err := db.First(&JobStatus{}).Error; errors.Is(err, gorm.ErrRecordNotFound) {
		logg.Info("Inserting seed data into 'job_statuses'")
		db.Create(&[]JobStatus{
			{Name: ENQUEUED_JOB},
			{Name: IN_PROGRESS_JOB},
			{Name: SUCCESSFUL_JOB},
			{Name: DEAD_JOB},
			{Name: SCHEDULED_JOB},
		})
	}
}

func seedBookingStatuses() {
	if err := db.First(&BookingStatus{}).Error; errors.Is(err, gorm.ErrRecordNotFound) {
		logg.Info("Inserting seed data into 'booking_statuses'")
		db.Create(&[]BookingStatus{
			{Name: PENDING_BOOKING},
			{Name: CONFIRMED_BOOKING},
			{Name: CANCELLED_BOOKING},
			{Name: COMPLETED_BOOKING},
		})
	}
}

func sqliteDSN(dbPath, passPhrase string) string {
	return fmt.Sprintf("%v?_pragma_key=%v&_pragma_cipher_page_size=4096", dbPath, passPhrase)
}

// The sqlite driver doesn't expose a typed error for constraint failures,
// so we have to sniff the message.
func isUniqueConstraintViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
