package types

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Compile-time interface assertions.
// These ensure the JSONB types implement both sql.Scanner and driver.Valuer,
// catching any method signature drift at compile time rather than at runtime.
// Scan is on pointer receivers; Value is on value receivers.
var (
	_ sql.Scanner   = (*InsightEvidence)(nil)
	_ driver.Valuer = InsightEvidence{}
	_ sql.Scanner   = (*NDVIStats)(nil)
	_ driver.Valuer = NDVIStats{}
)

// scanJSONB is a generic helper that scans a JSONB database value into a Go pointer.
// It handles nil values, []byte, and string representations from different database drivers.
func scanJSONB(dest interface{}, value interface{}) error {
	if value == nil {
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("jsonb: unsupported scan type %T", value)
	}
	return json.Unmarshal(data, dest)
}

// valueJSONB is a generic helper that converts a Go value to a JSONB-compatible driver.Value.
func valueJSONB(v interface{}) (driver.Value, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

// ---------------------------------------------------------------------------
// InsightEvidence
// ---------------------------------------------------------------------------

// Scan implements the sql.Scanner interface for reading JSONB from the database.
func (ev *InsightEvidence) Scan(value interface{}) error {
	return scanJSONB(ev, value)
}

// Value implements the driver.Valuer interface for writing JSONB to the database.
// The evidence blob must round-trip exactly: serialize, store, reload, and
// deserialize yields a field-for-field equal value.
func (ev InsightEvidence) Value() (driver.Value, error) {
	return valueJSONB(ev)
}

// ---------------------------------------------------------------------------
// NDVIStats
// ---------------------------------------------------------------------------

// Scan implements the sql.Scanner interface for reading JSONB from the database.
func (s *NDVIStats) Scan(value interface{}) error {
	return scanJSONB(s, value)
}

// Value implements the driver.Valuer interface for writing JSONB to the database.
func (s NDVIStats) Value() (driver.Value, error) {
	return valueJSONB(s)
}
