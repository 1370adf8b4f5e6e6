package model

import "time"

// Order is the persisted form of a guest order.
type Order struct {
	ID         string  `gorm:"primaryKey;size:40"` // Store-assigned
	GuestName  string  `gorm:"size:128;not null"`
	CoffeeType string  `gorm:"size:64;not null"`
	Size       string  `gorm:"size:16;not null"`
	Percentage int     `gorm:"not null"`
	MilkLevel  *string `gorm:"size:16"`
	Timestamp  int64   `gorm:"not null;index"` // ms since epoch, store clock
	Status     string  `gorm:"size:16;not null;index"`
}

// ServiceState holds the single shared service-availability flag.
type ServiceState struct {
	ID        int       `gorm:"primaryKey"`
	Open      bool      `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// ServiceStateID is the primary key of the only ServiceState row.
const ServiceStateID = 1
