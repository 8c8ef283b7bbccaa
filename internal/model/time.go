package model

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// LocalTime 以 "YYYY-MM-DD HH:MM:SS" 格式序列化，并可直接存入数据库。
type LocalTime time.Time

const timeFormat = "2006-01-02 15:04:05"

// MarshalJSON implements the json.Marshaler interface.
func (t LocalTime) MarshalJSON() ([]byte, error) {
	if time.Time(t).IsZero() {
		return []byte("null"), nil
	}
	return []byte(fmt.Sprintf("\"%s\"", time.Time(t).Format(timeFormat))), nil
}

// Value implements driver.Valuer.
func (t LocalTime) Value() (driver.Value, error) {
	if time.Time(t).IsZero() {
		return nil, nil
	}
	return time.Time(t), nil
}

// Scan implements sql.Scanner.
func (t *LocalTime) Scan(v interface{}) error {
	switch val := v.(type) {
	case nil:
		*t = LocalTime{}
	case time.Time:
		*t = LocalTime(val)
	case []byte:
		return t.parse(string(val))
	case string:
		return t.parse(val)
	default:
		return fmt.Errorf("cannot scan %T into LocalTime", v)
	}
	return nil
}

func (t *LocalTime) parse(s string) error {
	parsed, err := time.ParseInLocation(timeFormat, s, time.Local)
	if err != nil {
		return err
	}
	*t = LocalTime(parsed)
	return nil
}

// GormDataType 指定建表时使用的列类型。
func (LocalTime) GormDataType() string {
	return "datetime"
}
