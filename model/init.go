package model

import "taskchat/platform"

func InstallDB() {
	db := platform.DB
	if err := db.AutoMigrate(
		&User{},
		&Task{},
		&Conversation{},
		&Message{}); err != nil {
		panic(err)
	}
}
