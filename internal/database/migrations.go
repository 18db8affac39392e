package database

import (
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	migrationLowercaseUsernames = "2026-03-01_lowercase_usernames"
	migrationBlankDisplayNames  = "2026-03-08_default_blank_display_names"
)

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationLowercaseUsernames, apply: lowercaseUsernames},
		{name: migrationBlankDisplayNames, apply: defaultBlankDisplayNames},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := db.Transaction(func(tx *gorm.DB) error {
			if err := migration.apply(tx); err != nil {
				return err
			}
			appliedAt := time.Now().UTC().Unix()
			return tx.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error
		}); err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// lowercaseUsernames folds usernames stored before case-insensitive login.
func lowercaseUsernames(db *gorm.DB) error {
	return db.Exec("UPDATE user_accounts SET username = lower(trim(username)) WHERE username <> lower(trim(username))").Error
}

func defaultBlankDisplayNames(db *gorm.DB) error {
	return db.Exec("UPDATE user_accounts SET display_name = username WHERE trim(coalesce(display_name, '')) = ''").Error
}
