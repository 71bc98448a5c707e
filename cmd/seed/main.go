// Package main seeds the cluster registry catalog and the system audience
// presets. Safe to re-run: every write is an idempotent upsert.
package main

import (
	"context"
	"log"
	"time"

	"github.com/privacy-engine/internal/config"
	"github.com/privacy-engine/internal/models"
	"github.com/privacy-engine/internal/storage"
	"github.com/privacy-engine/internal/types"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	postgres, err := storage.NewPostgresDB(&cfg.Database.Postgres)
	if err != nil {
		log.Fatalf("Failed to connect to Postgres: %v", err)
	}
	defer postgres.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	registryRepo := storage.NewRegistryRepository(postgres)
	for _, cluster := range catalog() {
		if err := registryRepo.Upsert(ctx, cluster); err != nil {
			log.Fatalf("Failed to seed cluster %s: %v", cluster.ID, err)
		}
		log.Printf("Seeded cluster %s (%d subclusters)", cluster.ID, len(cluster.Subclusters))
	}

	presetRepo := storage.NewPresetRepository(postgres)
	for _, preset := range systemPresets() {
		if err := presetRepo.UpsertSystem(ctx, preset); err != nil {
			log.Fatalf("Failed to seed preset %s: %v", preset.Key, err)
		}
		log.Printf("Seeded system preset %s", preset.Key)
	}

	log.Println("Seeding completed successfully")
}

// catalog is the administered cluster taxonomy. Positions fix the display
// and resolution order; default sensitivities reflect how revealing each
// cluster is for somebody who has configured nothing.
func catalog() []*models.ClusterDefinition {
	return []*models.ClusterDefinition{
		{
			ID:                 "personal-identity",
			Name:               "Personal Identity",
			Category:           types.CategoryPersonal,
			DefaultSensitivity: 40,
			Position:           1,
			Subclusters: []models.Subcluster{
				{ID: "age-gender", Name: "Age & Gender", DefaultSensitivity: 50},
				{ID: "location", Name: "Location", DefaultSensitivity: 25},
				{ID: "relationships", Name: "Relationships", DefaultSensitivity: 20},
			},
		},
		{
			ID:                 "health-wellness",
			Name:               "Health & Wellness",
			Category:           types.CategoryPersonal,
			DefaultSensitivity: 15,
			Position:           2,
			Subclusters: []models.Subcluster{
				{ID: "fitness", Name: "Fitness", DefaultSensitivity: 40},
				{ID: "mental-health", Name: "Mental Health", DefaultSensitivity: 5},
				{ID: "medications", Name: "Medications", DefaultSensitivity: 5},
			},
		},
		{
			ID:                 "entertainment",
			Name:               "Entertainment",
			Category:           types.CategoryPersonal,
			DefaultSensitivity: 75,
			Position:           3,
			Subclusters: []models.Subcluster{
				{ID: "music", Name: "Music", DefaultSensitivity: 85},
				{ID: "film-tv", Name: "Film & TV", DefaultSensitivity: 85},
				{ID: "gaming", Name: "Gaming", DefaultSensitivity: 70},
			},
		},
		{
			ID:                 "professional-identity",
			Name:               "Professional Identity",
			Category:           types.CategoryProfessional,
			DefaultSensitivity: 60,
			Position:           4,
			Subclusters: []models.Subcluster{
				{ID: "job-title", Name: "Job Title", DefaultSensitivity: 70},
				{ID: "employer", Name: "Employer", DefaultSensitivity: 55},
				{ID: "salary", Name: "Salary", DefaultSensitivity: 5},
			},
		},
		{
			ID:                 "skills-expertise",
			Name:               "Skills & Expertise",
			Category:           types.CategoryProfessional,
			DefaultSensitivity: 80,
			Position:           5,
			Subclusters: []models.Subcluster{
				{ID: "technical", Name: "Technical Skills", DefaultSensitivity: 85},
				{ID: "certifications", Name: "Certifications", DefaultSensitivity: 75},
			},
		},
		{
			ID:                 "creative-work",
			Name:               "Creative Work",
			Category:           types.CategoryCreative,
			DefaultSensitivity: 70,
			Position:           6,
			Subclusters: []models.Subcluster{
				{ID: "writing", Name: "Writing", DefaultSensitivity: 65},
				{ID: "visual-art", Name: "Visual Art", DefaultSensitivity: 75},
				{ID: "side-projects", Name: "Side Projects", DefaultSensitivity: 60},
			},
		},
	}
}

// systemPresets are the built-in audiences. They carry cluster-level
// granularity only; subclusters inherit when a preset governs.
func systemPresets() []*models.AudiencePreset {
	return []*models.AudiencePreset{
		{
			Key:           "professional",
			Name:          "Professional",
			Description:   "Work-appropriate: career details visible, personal life private",
			GlobalPrivacy: 35,
			IsSystem:      true,
			DefaultClusterLevels: map[string]types.PrivacyLevel{
				"professional-identity": 90,
				"skills-expertise":      95,
				"personal-identity":     20,
				"health-wellness":       0,
				"entertainment":         30,
				"creative-work":         60,
			},
		},
		{
			Key:           "social",
			Name:          "Social",
			Description:   "Friends and acquaintances: personality forward, work details muted",
			GlobalPrivacy: 60,
			IsSystem:      true,
			DefaultClusterLevels: map[string]types.PrivacyLevel{
				"entertainment":         90,
				"creative-work":         80,
				"personal-identity":     65,
				"professional-identity": 40,
				"health-wellness":       20,
			},
		},
		{
			Key:           "dating",
			Name:          "Dating",
			Description:   "Personality and interests visible, professional and health details private",
			GlobalPrivacy: 50,
			IsSystem:      true,
			DefaultClusterLevels: map[string]types.PrivacyLevel{
				"personal-identity":     75,
				"entertainment":         85,
				"creative-work":         80,
				"professional-identity": 30,
				"health-wellness":       10,
				"skills-expertise":      40,
			},
		},
		{
			Key:           "public",
			Name:          "Public",
			Description:   "Strangers and open contexts: minimal disclosure across the board",
			GlobalPrivacy: 15,
			IsSystem:      true,
			DefaultClusterLevels: map[string]types.PrivacyLevel{
				"creative-work":         50,
				"skills-expertise":      40,
				"entertainment":         30,
				"professional-identity": 25,
				"personal-identity":     10,
				"health-wellness":       0,
			},
		},
	}
}
