package models

import (
	"database/sql/driver"

	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// Labels is a set of label names stored as text[] in postgres. Other
// dialects keep the same array literal in a text column.
type Labels []string

// Value implements the driver.Valuer interface for Labels
func (l Labels) Value() (driver.Value, error) {
	return pq.StringArray(l).Value()
}

// Scan implements the sql.Scanner interface for Labels
func (l *Labels) Scan(value interface{}) error {
	var arr pq.StringArray
	if err := arr.Scan(value); err != nil {
		return err
	}
	*l = Labels(arr)
	return nil
}

func (Labels) GormDBDataType(db *gorm.DB, field *schema.Field) string {
	if db.Dialector.Name() == "postgres" {
		return "text[]"
	}
	return "text"
}
