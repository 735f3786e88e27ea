package backup

import (
	"bytes"
	"context"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/fitbarz/kitcontrol/internal/domain"
)

// FormatVersion is stamped into every exported document.
const FormatVersion = "1.0.0"

// ErrInvalidDocument is returned when an import document is not valid
// JSON or lacks the required array fields. Nothing is written in that
// case.
var ErrInvalidDocument = errors.New("invalid backup document: products and logs arrays are required")

// Document is the portable backup format. Exports include inactive
// products and the full dispatch log. Unknown extra fields in an
// imported document are tolerated.
type Document struct {
	Timestamp string                  `json:"timestamp"`
	Version   string                  `json:"version"`
	Products  []domain.Product        `json:"products"`
	Logs      []domain.DispatchRecord `json:"logs"`
}

// Codec serializes and restores the combined catalog + dispatch log
// state.
type Codec struct {
	db *gorm.DB
}

func NewCodec(db *gorm.DB) *Codec {
	return &Codec{db: db}
}

// Export snapshots the full state, including inactive records.
func (c *Codec) Export(ctx context.Context) (*Document, error) {
	var products []domain.Product
	err := c.db.WithContext(ctx).
		Preload("Components", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort ASC, id ASC")
		}).
		Order("id ASC").
		Find(&products).Error
	if err != nil {
		return nil, errors.Wrap(err, "export products")
	}

	var logs []domain.DispatchRecord
	if err := c.db.WithContext(ctx).Order("id DESC").Find(&logs).Error; err != nil {
		return nil, errors.Wrap(err, "export dispatch log")
	}

	return &Document{
		Timestamp: time.Now().Format(time.RFC3339),
		Version:   FormatVersion,
		Products:  products,
		Logs:      logs,
	}, nil
}

// ExportJSON renders the export document as indented JSON.
func (c *Codec) ExportJSON(ctx context.Context) ([]byte, error) {
	doc, err := c.Export(ctx)
	if err != nil {
		return nil, err
	}
	return jsoniter.MarshalIndent(doc, "", "  ")
}

// Import validates and restores a backup document. This is a hard
// overwrite: on success the current catalog and log are fully
// replaced; on any parse or shape failure the existing state is left
// untouched. Callers must obtain explicit confirmation before
// invoking it.
func (c *Codec) Import(ctx context.Context, data []byte) error {
	var shape map[string]jsoniter.RawMessage
	if err := jsoniter.Unmarshal(data, &shape); err != nil {
		return ErrInvalidDocument
	}
	if !isJSONArray(shape["products"]) || !isJSONArray(shape["logs"]) {
		return ErrInvalidDocument
	}

	var doc Document
	if err := jsoniter.Unmarshal(data, &doc); err != nil {
		return ErrInvalidDocument
	}

	return c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, model := range []interface{}{
			&domain.DispatchRecord{}, &domain.Component{}, &domain.Product{},
		} {
			if err := tx.Where("1 = 1").Delete(model).Error; err != nil {
				return errors.Wrap(err, "clear state")
			}
		}
		for i := range doc.Products {
			p := doc.Products[i]
			components := p.Components
			p.Components = nil
			if err := tx.Create(&p).Error; err != nil {
				return errors.Wrap(err, "restore product")
			}
			for j := range components {
				components[j].ProductID = p.ID
				if err := tx.Create(&components[j]).Error; err != nil {
					return errors.Wrap(err, "restore component")
				}
			}
		}
		for i := range doc.Logs {
			if err := tx.Create(&doc.Logs[i]).Error; err != nil {
				return errors.Wrap(err, "restore dispatch record")
			}
		}
		return nil
	})
}

func isJSONArray(raw jsoniter.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '['
}
