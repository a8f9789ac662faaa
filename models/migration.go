package models

import (
	"log"

	"bitbucket.org/mmdatafocus/tracking_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Branch{}, &User{}, &Factory{},
		&ItemJob{}, &StatusEvent{},
		&Batch{}, &BatchItem{},
		&JobEditAudit{}, &Incident{},
		&RefreshToken{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
