package database

import (
	"cogvideo-bot-go/internal/model"
	"cogvideo-bot-go/pkg/log"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

var DB *gorm.DB

// InitMySQL 初始化 MySQL 数据库连接并迁移表结构。
func InitMySQL(dsn string) {
	var err error
	DB, err = gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to mysql", err)
	}

	if err := DB.AutoMigrate(&model.GenerationRecord{}); err != nil {
		log.Fatal("failed to migrate database", err)
	}

	log.Info("MySQL 连接初始化成功")
}
