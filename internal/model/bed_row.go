package model

import "time"

// BedRow is the flat remote representation of a bed (table "beds").
type BedRow struct {
	ID               int64        `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Status           string       `gorm:"size:16;not null" json:"status"`
	CurrentPresetID  *string      `gorm:"size:128" json:"current_preset_id"`
	CustomPreset     PresetColumn `gorm:"column:custom_preset_json" json:"custom_preset_json"`
	CurrentStepIndex int          `gorm:"not null" json:"current_step_index"`
	Queue            IntList      `gorm:"not null" json:"queue"`
	StartTime        *int64       `json:"start_time"` // unix millis
	OriginalDuration *int         `json:"original_duration"`
	RemainingTime    int          `gorm:"not null" json:"remaining_time"`
	IsPaused         bool         `gorm:"not null" json:"is_paused"`
	IsInjection      bool         `gorm:"column:is_injection;not null" json:"is_injection"`
	IsManual         bool         `gorm:"column:is_manual;not null" json:"is_manual"`
	IsESWT           bool         `gorm:"column:is_eswt;not null" json:"is_eswt"`
	IsTraction       bool         `gorm:"column:is_traction;not null" json:"is_traction"`
	IsFluid          bool         `gorm:"column:is_fluid;not null" json:"is_fluid"`
	Memos            MemoMap      `gorm:"not null" json:"memos"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

// TableName pins the table name.
func (BedRow) TableName() string { return "beds" }
