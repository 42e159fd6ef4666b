package models

import "gorm.io/datatypes"

// NotificationRecord is the server-side delivery history row written whenever
// a notification is produced for a user, such as the nightly summary.
type NotificationRecord struct {
	BaseModel

	UserID string         `gorm:"type:uuid;not null;index" json:"user_id"`
	Title  string         `gorm:"type:varchar(255);not null" json:"title"`
	Body   string         `gorm:"type:text" json:"body"`
	Data   datatypes.JSON `json:"data"`
	Read   bool           `gorm:"default:false" json:"read"`
}
