package models

const (
	RoleViewer = "viewer"
	RoleAdmin  = "admin"
)

type User struct {
	ID           uint   `gorm:"primaryKey;autoIncrement"  json:"id"`
	Username     string `gorm:"uniqueIndex;not null"      json:"username"`
	PasswordHash string `gorm:"not null"                  json:"-"`
	Role         string `gorm:"not null;default:viewer"   json:"role"`
}
