package models

import (
	"github.com/jinzhu/gorm"
)

// PaymentAttempt records the outcome of paying one order within a batch
type PaymentAttempt struct {
	gorm.Model
	BatchID     string `gorm:"index"`
	OrderID     int    `gorm:"index"`
	TableNumber int    `gorm:"index"`
	Succeeded   bool
	Error       string
}
