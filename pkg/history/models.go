package history

import (
	"encoding/json"

	"github.com/pitabwire/frame/data"
)

// QueryRecord stores one processed voice query.
type QueryRecord struct {
	data.BaseModel

	Transcript string `gorm:"type:text;not null"                    json:"transcript"`
	Language   string `gorm:"type:varchar(16)"                      json:"language,omitempty"`
	Query      JSONB  `gorm:"type:jsonb;default:'{}'"               json:"query"`
	Error      string `gorm:"type:text"                             json:"error,omitempty"`
	Items      int    `gorm:"default:0"                             json:"items"`
	AudioBytes int64  `gorm:"default:0"                             json:"audio_bytes"`
	Segmented  bool   `gorm:"default:false"                         json:"segmented"`
	Backend    string `gorm:"type:varchar(64);index:idx_qr_backend" json:"backend"`
	Model      string `gorm:"type:varchar(128)"                     json:"model"`
	DurationMs int64  `gorm:"default:0"                             json:"duration_ms"`
}

func (QueryRecord) TableName() string { return "query_records" }

// JSONB is a custom GORM type for raw JSON columns.
type JSONB json.RawMessage

func (j JSONB) Value() (any, error) {
	if len(j) == 0 {
		return "{}", nil
	}
	return string(j), nil
}

func (j *JSONB) Scan(src any) error {
	switch v := src.(type) {
	case []byte:
		*j = append((*j)[:0], v...)
	case string:
		*j = JSONB(v)
	default:
		*j = JSONB("{}")
	}
	return nil
}

func (j JSONB) MarshalJSON() ([]byte, error) {
	if len(j) == 0 {
		return []byte("{}"), nil
	}
	return j, nil
}

func (j *JSONB) UnmarshalJSON(b []byte) error {
	*j = append((*j)[:0], b...)
	return nil
}
