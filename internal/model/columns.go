package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// IntList is a JSON-encoded integer list column.
type IntList []int

// Value implements driver.Valuer.
func (l IntList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]int(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (l *IntList) Scan(src any) error {
	*l = IntList{}
	return scanJSON(src, (*[]int)(l))
}

// GormDataType keeps the column portable between postgres and sqlite.
func (IntList) GormDataType() string { return "text" }

// MemoMap is a JSON-encoded step index to memo column.
type MemoMap map[int]string

// Value implements driver.Valuer.
func (m MemoMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(map[int]string(m))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (m *MemoMap) Scan(src any) error {
	*m = MemoMap{}
	return scanJSON(src, (*map[int]string)(m))
}

// GormDataType keeps the column portable between postgres and sqlite.
func (MemoMap) GormDataType() string { return "text" }

// PresetColumn is a nullable JSON-encoded preset column.
type PresetColumn struct {
	Preset *Preset
}

// Value implements driver.Valuer.
func (c PresetColumn) Value() (driver.Value, error) {
	if c.Preset == nil {
		return nil, nil
	}
	b, err := json.Marshal(c.Preset)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (c *PresetColumn) Scan(src any) error {
	c.Preset = nil
	if src == nil {
		return nil
	}
	var p Preset
	if err := scanJSON(src, &p); err != nil {
		return err
	}
	c.Preset = &p
	return nil
}

// MarshalJSON encodes the column as the bare preset (or null).
func (c PresetColumn) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Preset)
}

// UnmarshalJSON decodes a bare preset (or null).
func (c *PresetColumn) UnmarshalJSON(data []byte) error {
	c.Preset = nil
	return json.Unmarshal(data, &c.Preset)
}

// GormDataType keeps the column portable between postgres and sqlite.
func (PresetColumn) GormDataType() string { return "text" }

// StepList is a JSON-encoded step sequence column.
type StepList []TreatmentStep

// Value implements driver.Valuer.
func (l StepList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]TreatmentStep(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (l *StepList) Scan(src any) error {
	*l = StepList{}
	return scanJSON(src, (*[]TreatmentStep)(l))
}

// GormDataType keeps the column portable between postgres and sqlite.
func (StepList) GormDataType() string { return "text" }

func scanJSON(src any, dst any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported column type %T", src)
	}
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	return json.Unmarshal(data, dst)
}
