package models

import (
	"fmt"

	"gorm.io/gorm"
)

// AllModels returns all models for migration.
// Lookup tables come before resources, and resources before their join rows.
func AllModels() []interface{} {
	return []interface{}{
		&User{},
		&APIKey{},
		&ResourceType{},
		&Category{},
		&Resource{},
		&ResourceCategory{},
	}
}

// AutoMigrate runs GORM auto-migration for all models
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return err
	}
	return pinNameCollation(db)
}

// pinNameCollation makes lookup names compare byte for byte on MySQL, whose
// default collation would fold "SQL" and "sql" onto one row.
func pinNameCollation(db *gorm.DB) error {
	if db.Dialector.Name() != "mysql" {
		return nil
	}
	for _, table := range []string{"resource_types", "categories"} {
		stmt := fmt.Sprintf("ALTER TABLE %s MODIFY name VARCHAR(191) CHARACTER SET utf8mb4 COLLATE utf8mb4_bin NOT NULL", table)
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("pin collation on %s: %w", table, err)
		}
	}
	return nil
}
