package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
)

// StringSlice stores a string array as a JSON document in a CLOB column.
type StringSlice []string

// Value implements the driver.Valuer interface.
func (s StringSlice) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	jsonData, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(jsonData), nil
}

// Scan implements the sql.Scanner interface.
func (s *StringSlice) Scan(value interface{}) error {
	bytesToParse, err := clobBytes("StringSlice", value)
	if err != nil {
		return err
	}
	if bytesToParse == nil {
		*s = StringSlice{}
		return nil
	}
	return json.Unmarshal(bytesToParse, s)
}

// JSONMap stores a loosely typed object as a JSON document in a CLOB column.
type JSONMap map[string]interface{}

// Value implements the driver.Valuer interface.
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	jsonData, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(jsonData), nil
}

// Scan implements the sql.Scanner interface.
func (m *JSONMap) Scan(value interface{}) error {
	bytesToParse, err := clobBytes("JSONMap", value)
	if err != nil {
		return err
	}
	if bytesToParse == nil {
		*m = JSONMap{}
		return nil
	}
	return json.Unmarshal(bytesToParse, m)
}

// clobBytes normalizes a scanned CLOB value to a byte slice ready for JSON
// decoding. It returns nil bytes for DB NULL, empty strings, and the literal
// "null", all of which callers treat as an empty value.
func clobBytes(typeName string, value interface{}) ([]byte, error) {
	if value == nil {
		return nil, nil
	}

	var bytesToParse []byte
	switch v := value.(type) {
	case []byte:
		bytesToParse = v
	case string:
		bytesToParse = []byte(v)
	default:
		return nil, errors.New(typeName + " Scan: unsupported type " + fmt.Sprintf("%T", value))
	}

	if len(bytesToParse) == 0 || string(bytesToParse) == "null" {
		return nil, nil
	}
	return bytesToParse, nil
}
