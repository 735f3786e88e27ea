package domain

import "time"

// Record status values. Deletion is logical: rows are flipped to
// StatusInactive and never removed.
const (
	StatusActive   = "ACTIVE"
	StatusInactive = "INACTIVE"
)

// Product represents a machine kit that is dispatched as a unit.
type Product struct {
	ID         int64       `gorm:"primaryKey" json:"id,string" form:"id"`
	Name       string      `gorm:"index;size:200" json:"name" form:"name"`
	Code       string      `gorm:"index;size:64" json:"code" form:"code"`
	ImageURL   string      `gorm:"column:image_url;size:2048" json:"image_url" form:"image_url"`
	Status     string      `gorm:"size:16;index;default:'ACTIVE'" json:"status" form:"status"`
	Components []Component `gorm:"foreignKey:ProductID" json:"components"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

func (Product) TableName() string {
	return "catalog_product"
}

// ActiveComponents returns the components still part of the kit.
func (p *Product) ActiveComponents() []Component {
	out := make([]Component, 0, len(p.Components))
	for _, c := range p.Components {
		if c.Status == StatusActive {
			out = append(out, c)
		}
	}
	return out
}

// Component is a piece of a Product kit that must be individually
// verified before dispatch. It belongs to exactly one Product.
type Component struct {
	ID        int64     `gorm:"primaryKey" json:"id,string" form:"id"`
	ProductID int64     `gorm:"index" json:"product_id,string" form:"product_id"`
	Name      string    `gorm:"size:200" json:"name" form:"name"`
	Code      string    `gorm:"index;size:64" json:"code" form:"code"`
	ImageURL  string    `gorm:"column:image_url;size:2048" json:"image_url" form:"image_url"`
	Status    string    `gorm:"size:16;index;default:'ACTIVE'" json:"status" form:"status"`
	Sort      int       `json:"sort" form:"sort"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Component) TableName() string {
	return "catalog_component"
}
