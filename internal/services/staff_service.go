package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/hotslice/internal/models"
	"github.com/example/hotslice/internal/utils"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrStaffExists        = errors.New("staff user already exists")
	ErrStaffNotFound      = errors.New("staff user not found")
)

// StaffService manages kitchen and admin accounts.
type StaffService struct {
	db *gorm.DB
}

func NewStaffService(db *gorm.DB) *StaffService {
	return &StaffService{db: db}
}

// Authenticate returns the active staff user matching the credentials.
func (s *StaffService) Authenticate(ctx context.Context, email, password string) (*models.StaffUser, error) {
	var user models.StaffUser
	err := s.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if !user.Active || !utils.CheckPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return &user, nil
}

// CreateStaff registers a new account with an admin or kitchen role.
func (s *StaffService) CreateStaff(ctx context.Context, name, email, password, role string) (*models.StaffUser, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, &ValidationError{Field: "email", Reason: "is required"}
	}
	if role != models.RoleAdmin && role != models.RoleKitchen {
		return nil, &ValidationError{Field: "role", Reason: "must be admin or kitchen"}
	}

	passwordHash, err := utils.HashPassword(password)
	if errors.Is(err, utils.ErrPasswordTooShort) {
		return nil, &ValidationError{Field: "password", Reason: fmt.Sprintf("must be at least %d characters", utils.MinPasswordLength)}
	}
	if err != nil {
		return nil, err
	}

	var existing int64
	if err := s.db.WithContext(ctx).Model(&models.StaffUser{}).Where("email = ?", email).Count(&existing).Error; err != nil {
		return nil, err
	}
	if existing > 0 {
		return nil, ErrStaffExists
	}

	user := models.StaffUser{
		Name:         strings.TrimSpace(name),
		Email:        email,
		PasswordHash: passwordHash,
		Role:         role,
		Active:       true,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// ListStaff returns staff accounts, newest first, and their total count.
func (s *StaffService) ListStaff(ctx context.Context, search string, limit, offset int) ([]models.StaffUser, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.StaffUser{})
	if search = strings.TrimSpace(search); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ?", like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var users []models.StaffUser
	if err := query.Order("created_at desc").Limit(limit).Offset(offset).Find(&users).Error; err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

// SetActive enables or disables an account. Disabled accounts cannot log in.
func (s *StaffService) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	res := s.db.WithContext(ctx).Model(&models.StaffUser{}).Where("id = ?", id).Update("active", active)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaffNotFound
	}
	return nil
}

// EnsureAdmin creates the bootstrap admin account unless it already exists.
func (s *StaffService) EnsureAdmin(ctx context.Context, email, password string) error {
	_, err := s.CreateStaff(ctx, "Administrator", email, password, models.RoleAdmin)
	if errors.Is(err, ErrStaffExists) {
		return nil
	}
	if err != nil {
		return err
	}
	log.Printf("[Staff] seeded admin %s", normalizeEmail(email))
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
