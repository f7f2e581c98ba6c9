package introspect

import (
	"fmt"
	"strings"
)

// TypeKind tags the portable type family a vendor type maps onto.
type TypeKind string

const (
	KindUnknown   TypeKind = "unknown"
	KindInteger   TypeKind = "integer"
	KindNumeric   TypeKind = "numeric"
	KindFloat     TypeKind = "float"
	KindChar      TypeKind = "char"
	KindVarChar   TypeKind = "varchar"
	KindBoolean   TypeKind = "boolean"
	KindDate      TypeKind = "date"
	KindTime      TypeKind = "time"
	KindTimestamp TypeKind = "timestamp"
	KindInterval  TypeKind = "interval"
	KindBinary    TypeKind = "binary"
	KindUUID      TypeKind = "uuid"
)

// PortableType is a vendor-neutral column type descriptor. Only the fields
// that apply to the Kind are populated; the rest stay zero.
type PortableType struct {
	Kind      TypeKind `json:"kind"`
	Width     int      `json:"width,omitempty"`     // integer/float width in bits
	Length    int      `json:"length,omitempty"`    // char/varchar/binary length
	Precision int      `json:"precision,omitempty"` // numeric or sub-second precision
	Scale     int      `json:"scale,omitempty"`
	Timezone  bool     `json:"timezone,omitempty"`
	Fields    string   `json:"fields,omitempty"` // interval qualifier, e.g. "day to second"
}

// String renders the descriptor as vendor DDL type text.
func (t PortableType) String() string {
	switch t.Kind {
	case KindInteger:
		if t.Width > 0 && t.Width <= 16 {
			return "SMALLINT"
		}
		return "INT"
	case KindNumeric:
		if t.Precision > 0 {
			return fmt.Sprintf("NUMERIC(%d,%d)", t.Precision, t.Scale)
		}
		return "NUMERIC"
	case KindFloat:
		return "FLOAT"
	case KindChar:
		if t.Length > 0 {
			return fmt.Sprintf("CHAR(%d)", t.Length)
		}
		return "CHAR"
	case KindVarChar:
		if t.Length > 0 {
			return fmt.Sprintf("VARCHAR(%d)", t.Length)
		}
		return "VARCHAR"
	case KindBoolean:
		return "BOOLEAN"
	case KindDate:
		return "DATE"
	case KindTime:
		return timeText("TIME", t.Timezone, t.Precision)
	case KindTimestamp:
		return timeText("TIMESTAMP", t.Timezone, t.Precision)
	case KindInterval:
		s := "INTERVAL"
		if t.Fields != "" {
			s += " " + strings.ToUpper(t.Fields)
		}
		if t.Precision > 0 {
			s += fmt.Sprintf("(%d)", t.Precision)
		}
		return s
	case KindBinary:
		if t.Length > 0 {
			return fmt.Sprintf("VARBINARY(%d)", t.Length)
		}
		return "VARBINARY"
	case KindUUID:
		return "UUID"
	}
	return "UNKNOWN"
}

func timeText(base string, tz bool, precision int) string {
	if tz {
		base += "TZ"
	}
	if precision > 0 {
		base += fmt.Sprintf("(%d)", precision)
	}
	return base
}

// Column describes one reflected table, view or projection column.
type Column struct {
	Name          string       `json:"name"`
	Type          PortableType `json:"type"`
	Nullable      bool         `json:"nullable"`
	Default       string       `json:"default,omitempty"`
	Autoincrement bool         `json:"autoincrement"`
	PrimaryKey    bool         `json:"primary_key"`
	Comment       string       `json:"comment,omitempty"`
}

// PrimaryKey lists the primary-key constraint columns of a table.
type PrimaryKey struct {
	Name    string   `json:"name,omitempty"`
	Columns []string `json:"columns"`
}

// UniqueConstraint groups the columns of one unique or primary-key constraint.
type UniqueConstraint struct {
	Name    string   `json:"name"`
	Columns []string `json:"column_names"`
}

// CheckConstraint carries a named check expression.
type CheckConstraint struct {
	Name    string `json:"name"`
	SQLText string `json:"sqltext"`
}

// ProjectionDetails bundles the independently queryable physical-storage
// attributes of one projection. Absent catalog rows leave zero values.
type ProjectionDetails struct {
	ROSCount        int64    `json:"ros_count"`
	Segmented       bool     `json:"is_segmented"`
	SegmentationKey string   `json:"segmentation_key,omitempty"`
	Types           []string `json:"projection_types,omitempty"`
	PartitionKey    string   `json:"partition_key,omitempty"`
	PartitionCount  int64    `json:"partition_count"`
	SizeKB          int64    `json:"size_kb"`
	Cached          bool     `json:"cached"`
}

// ModelAttribute is one attribute group of an in-database ML model.
type ModelAttribute struct {
	Name     string   `json:"attr_name"`
	Fields   []string `json:"attr_fields"`
	RowCount int64    `json:"row_count"`
}

// Comment is the fixed two-part envelope returned by property aggregators:
// a static description plus a category-specific properties mapping.
type Comment struct {
	Text       string            `json:"text"`
	Properties map[string]string `json:"properties"`
}

// Table is a reflected table or view with its columns.
type Table struct {
	Schema  string   `json:"schema,omitempty"`
	Name    string   `json:"name"`
	Columns []Column `json:"columns"`
	Comment *Comment `json:"comment,omitempty"`
}

// Catalog is a point-in-time snapshot of the reflected metadata for one
// schema scope. The caller owns it outright; nothing aliases back into
// connection state.
type Catalog struct {
	Schemas     []string `json:"schemas"`
	Tables      []Table  `json:"tables"`
	Views       []string `json:"views"`
	Projections []string `json:"projections"`
	Models      []string `json:"models"`
}
