package model

import "time"

// PresetRecord is a catalog preset row (table "presets").
type PresetRecord struct {
	ID        string    `gorm:"primaryKey;size:128"`
	Name      string    `gorm:"size:256;not null"`
	Steps     StepList  `gorm:"not null"`
	Rank      int       `gorm:"not null;index"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName pins the table name.
func (PresetRecord) TableName() string { return "presets" }

// Preset converts the record to a domain preset.
func (r PresetRecord) Preset() Preset {
	return Preset{ID: r.ID, Name: r.Name, Steps: CloneSteps(r.Steps)}
}
