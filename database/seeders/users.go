package seeders

import (
	"log"
	"os"

	"workshop-tracker/constants"
	"workshop-tracker/models/user"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// SeedAdminUser makes sure a workshop admin account exists so the system is
// usable right after first boot.
func SeedAdminUser(db *gorm.DB) {
	mobile := os.Getenv("ADMIN_MOBILE")
	if mobile == "" {
		mobile = "01700000000"
	}

	var count int64
	if err := db.Model(&user.User{}).Where("mobile = ?", mobile).Count(&count).Error; err != nil {
		log.Printf("❌ Failed to check admin user: %v", err)
		return
	}
	if count > 0 {
		log.Printf("✅ Admin user already present. No seeding needed.")
		return
	}

	password := os.Getenv("ADMIN_PASSWORD")
	if password == "" {
		password = "admin12345"
		log.Printf("⚠️ ADMIN_PASSWORD not set, seeding admin with default password")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Printf("❌ Failed to hash admin password: %v", err)
		return
	}

	admin := user.User{
		Uuid:         uuid.New().String(),
		Name:         "Workshop Admin",
		Mobile:       mobile,
		PasswordHash: string(hash),
		Role:         constants.RoleAdmin,
	}

	if err := db.Create(&admin).Error; err != nil {
		log.Printf("❌ Failed to seed admin user: %v", err)
		return
	}
	log.Printf("✅ Seeded admin user %s", admin.Mobile)
}
