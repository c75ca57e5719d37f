package models

import "time"

// Doctor is a directory entry used to resolve settlement payees.
type Doctor struct {
	ID        string    `gorm:"column:id;type:text;primaryKey"`
	Name      string    `gorm:"column:name;type:text;not null;index:idx_doctors_name"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (Doctor) TableName() string { return "doctors" }
