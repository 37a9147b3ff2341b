package auth

import (
	"context"

	"github.com/datasociety/hub/pkg/hub/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// EnsureAdmin creates an admin account when the store has none.
// It reports whether an account was created.
func EnsureAdmin(ctx context.Context, db *gorm.DB, email, password, name string, log *zap.Logger) (bool, error) {
	if log == nil {
		log = zap.NewNop()
	}

	var count int64
	if err := db.WithContext(ctx).Model(&models.User{}).Where("system_role = ?", models.SystemRoleAdmin).Count(&count).Error; err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}

	hashedPassword, err := HashPassword(password)
	if err != nil {
		return false, err
	}

	admin := models.User{
		Email:        normalizeEmail(email),
		Name:         name,
		PasswordHash: hashedPassword,
		SystemRole:   models.SystemRoleAdmin,
	}
	if err := db.WithContext(ctx).Create(&admin).Error; err != nil {
		return false, err
	}

	log.Warn("created default admin user, change its password", zap.String("email", email))
	return true, nil
}
