package database

import (
	"github.com/podiumlabs/podium/internal/repository/debatestore"
	"gorm.io/gorm"
)

func MigrateDB(db *gorm.DB) error {
	return db.AutoMigrate(
		&debatestore.SessionEntity{},
		&debatestore.SpeechEntity{},
	)
}
