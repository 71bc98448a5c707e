// Package models provides data models for the privacy engine.
package models

import (
	"time"

	"github.com/privacy-engine/internal/types"
)

// Subcluster is a finer-grained category inside a cluster (for example
// "Personal / Entertainment / Music").
type Subcluster struct {
	ID                 string             `json:"id"`
	Name               string             `json:"name"`
	DefaultSensitivity types.PrivacyLevel `json:"defaultSensitivity"`
}

// ClusterDefinition is an administered catalog entry. The catalog is seeded
// at deployment and immutable from the user's perspective; a cluster
// referenced by any user setting is never silently removed.
type ClusterDefinition struct {
	ID                 string                `json:"id" db:"id"`
	Name               string                `json:"name" db:"name"`
	Category           types.ClusterCategory `json:"category" db:"category"`
	DefaultSensitivity types.PrivacyLevel    `json:"defaultSensitivity" db:"default_sensitivity"`
	Subclusters        []Subcluster          `json:"subclusters" db:"subclusters"`
	Position           int                   `json:"position" db:"position"`
	CreatedAt          time.Time             `json:"createdAt" db:"created_at"`
}

// Subcluster returns the subcluster with the given id, or nil.
func (c *ClusterDefinition) Subcluster(id string) *Subcluster {
	for i := range c.Subclusters {
		if c.Subclusters[i].ID == id {
			return &c.Subclusters[i]
		}
	}
	return nil
}
