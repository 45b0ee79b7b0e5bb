package db

import (
	"time"

	"gorm.io/gorm"

	"github.com/conductorhq/conductor/internal/auth"
	"github.com/conductorhq/conductor/internal/ids"
	"github.com/conductorhq/conductor/internal/models"
)

// Seed inserts a small development dataset. Every insert is guarded by an
// existence check, so reseeding an already seeded database is a no-op.
func Seed(db *gorm.DB) {
	settings := map[string]string{
		"company_name":    "Conductor Engineering, PLLC",
		"company_address": "410 W 5th St, Austin, TX 78701",
		"company_email":   "billing@conductor.example",
		"company_phone":   "(512) 555-0142",
	}
	for k, v := range settings {
		var existing models.Setting
		if err := db.First(&existing, "key = ?", k).Error; err == gorm.ErrRecordNotFound {
			db.Create(&models.Setting{Key: k, Value: v})
		}
	}

	var admin models.Employee
	if err := db.First(&admin, "email = ?", "admin@conductor.example").Error; err == gorm.ErrRecordNotFound {
		hash, _ := auth.HashPassword("admin")
		admin = models.Employee{
			ID:        ids.New("emp-"),
			FirstName: "Ada",
			LastName:  "Vance",
			Email:     "admin@conductor.example",
			Password:  hash,
			IsActive:  true,
		}
		db.Create(&admin)
	}

	var client models.Client
	if err := db.First(&client, "name = ?", "Hargrove Builders").Error; err == gorm.ErrRecordNotFound {
		client = models.Client{
			ID:      ids.New("cli-"),
			Name:    "Hargrove Builders",
			Company: "Hargrove Builders LLC",
			Email:   "office@hargrove.example",
			Address: "118 Ranch Rd, Dripping Springs, TX 78620",
		}
		db.Create(&client)
	}

	var project models.Project
	if err := db.First(&project, "name = ?", "Mill Creek Retaining Wall").Error; err == gorm.ErrRecordNotFound {
		number, err := ids.NextProjectNumber(db, time.Now())
		if err != nil {
			return
		}
		project = models.Project{
			ID:            ids.New("prj-"),
			Name:          "Mill Creek Retaining Wall",
			ClientID:      &client.ID,
			PMID:          &admin.ID,
			PMName:        admin.FirstName + " " + admin.LastName,
			PMEmail:       admin.Email,
			ProjectNumber: number,
			Location:      "Dripping Springs, TX",
			Status:        models.ProjectStatusProposal,
		}
		db.Create(&project)
	}
}
