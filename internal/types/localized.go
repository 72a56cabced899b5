package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// LocalizedText is free text keyed by locale tag ("en", "de", ...). The
// engine stores it as-is and never computes on it.
type LocalizedText map[string]string

// Get returns the text for locale, falling back to fallback and then to any
// non-empty entry
func (l LocalizedText) Get(locale, fallback string) string {
	if v, ok := l[locale]; ok && v != "" {
		return v
	}
	if v, ok := l[fallback]; ok && v != "" {
		return v
	}
	for _, v := range l {
		if v != "" {
			return v
		}
	}
	return ""
}

// IsEmpty reports whether no locale carries text
func (l LocalizedText) IsEmpty() bool {
	return l.Get("", "") == ""
}

// Scan implements the sql.Scanner interface for LocalizedText
func (l *LocalizedText) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("failed to unmarshal JSONB value: %v", value)
	}

	result := make(LocalizedText)
	err := json.Unmarshal(bytes, &result)
	*l = result
	return err
}

// Value implements the driver.Valuer interface for LocalizedText
func (l LocalizedText) Value() (driver.Value, error) {
	if l == nil {
		return json.Marshal(make(LocalizedText))
	}
	return json.Marshal(l)
}
