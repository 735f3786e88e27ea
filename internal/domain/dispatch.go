package domain

import (
	"database/sql/driver"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

// ScannedItem is the denormalized snapshot of a confirmed component at
// dispatch time. Records keep names and codes as they were, so history
// survives later catalog edits.
type ScannedItem struct {
	ComponentID int64  `json:"component_id,string"`
	Name        string `json:"name"`
	Code        string `json:"code"`
}

// ScannedItems is stored as a JSON text column.
type ScannedItems []ScannedItem

func (s ScannedItems) Value() (driver.Value, error) {
	data, err := jsoniter.Marshal(s)
	if err != nil {
		return nil, errors.Wrap(err, "marshal scanned items")
	}
	return string(data), nil
}

func (s *ScannedItems) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*s = nil
		return nil
	case []byte:
		return jsoniter.Unmarshal(v, s)
	case string:
		return jsoniter.Unmarshal([]byte(v), s)
	default:
		return errors.Errorf("unsupported scanned items type %T", src)
	}
}

// DispatchRecord is one completed dispatch. Records are append-only and
// never updated after creation.
type DispatchRecord struct {
	ID           int64        `gorm:"primaryKey" json:"id,string" form:"id"`
	OrderNumber  string       `gorm:"index;size:64" json:"order_number" form:"order_number"`
	OperatorName string       `gorm:"size:100" json:"operator_name" form:"operator_name"`
	OperatorID   string       `gorm:"size:64" json:"operator_id" form:"operator_id"`
	ProductName  string       `gorm:"size:200" json:"product_name" form:"product_name"`
	ProductCode  string       `gorm:"size:64" json:"product_code" form:"product_code"`
	ScannedItems ScannedItems `gorm:"type:text" json:"scanned_items"`
	CreatedAt    time.Time    `json:"created_at"`
}

func (DispatchRecord) TableName() string {
	return "dispatch_record"
}
