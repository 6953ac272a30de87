package db

import (
	"log"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/smartys-dev/chatdesk/internal/admin"
	"github.com/smartys-dev/chatdesk/internal/chat"
	"github.com/smartys-dev/chatdesk/internal/models"
)

func Connect(driver, dsn string) *gorm.DB {
	var (
		gdb *gorm.DB
		err error
	)
	switch driver {
	case "mysql":
		gdb, err = gorm.Open(mysql.Open(dsn), &gorm.Config{})
	default:
		gdb, err = gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	}
	if err != nil {
		log.Fatalf("db open driver=%s err=%v", driver, err)
	}
	return gdb
}

func Migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(
		&models.User{},
		&models.Role{},
		&chat.Customer{},
		&chat.SessionMapping{},
		&chat.Message{},
		&admin.Invitation{},
	)
}
