package models

// Staff roles carried in access tokens.
const (
	RoleAdmin    = "admin"
	RoleKitchen  = "kitchen"
	RoleCustomer = "customer"
)

// StaffUser is a kitchen or admin account that operates the order dashboard.
type StaffUser struct {
	BaseModel
	Name         string `json:"name"`
	Email        string `gorm:"uniqueIndex" json:"email"`
	PasswordHash string `json:"-"`
	Role         string `gorm:"size:16;not null" json:"role"`
	Active       bool   `gorm:"not null;default:true" json:"active"`
}
