// Package valueobject holds column types shared by the outbound adapters.
package valueobject

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONMap is a JSONB object column: request context on otp events, provider
// responses on delivery logs.
type JSONMap map[string]any

func (j JSONMap) Value() (driver.Value, error) {
	if j == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(j)
}

// Scan accepts the encodings pgx hands to a sql.Scanner for json and jsonb.
// NULL scans to an empty map.
func (j *JSONMap) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*j = JSONMap{}
		return nil
	case map[string]any:
		*j = v
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("valueobject: cannot scan %T into JSONMap", src)
	}

	out := JSONMap{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return err
	}
	*j = out
	return nil
}

func (j JSONMap) GetString(key string) string {
	s, _ := j[key].(string)
	return s
}
