package model

import "gorm.io/gorm"

// AutoMigrate 建表（开发 / 测试环境）。
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&College{},
		&Student{},
		&ShopOwner{},
		&Shop{},
		&ShopCollege{},
		&Product{},
		&Order{},
		&OrderItem{},
		&Notification{},
		&OrderStatusEvent{},
	)
}
