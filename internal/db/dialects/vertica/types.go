package vertica

import (
	"regexp"
	"strconv"
	"strings"

	"verticadialect/internal/introspect"
	"verticadialect/internal/logger"
)

// TypeTranslator turns raw catalog type strings (e.g. "numeric(10,2)",
// "timestamptz(6)") into portable descriptors. The lookup table is built
// once at construction and never mutated afterwards, so translation is
// idempotent and side-effect free.
type TypeTranslator struct {
	types map[string]introspect.PortableType
}

// NewTypeTranslator builds a translator over the full vendor type table.
func NewTypeTranslator() *TypeTranslator {
	return &TypeTranslator{types: baseTypes()}
}

// baseTypes maps the uppercase vendor base-type vocabulary onto portable
// prototypes. The translator copies a prototype and fills in the parsed
// arguments, so prototypes carry only per-name constants (width, timezone).
func baseTypes() map[string]introspect.PortableType {
	integer := introspect.PortableType{Kind: introspect.KindInteger, Width: 64}
	smallint := introspect.PortableType{Kind: introspect.KindInteger, Width: 16}
	char := introspect.PortableType{Kind: introspect.KindChar}
	varchar := introspect.PortableType{Kind: introspect.KindVarChar}
	numeric := introspect.PortableType{Kind: introspect.KindNumeric}
	float := introspect.PortableType{Kind: introspect.KindFloat, Width: 53}
	timestamp := introspect.PortableType{Kind: introspect.KindTimestamp}
	timestamptz := introspect.PortableType{Kind: introspect.KindTimestamp, Timezone: true}
	timeType := introspect.PortableType{Kind: introspect.KindTime}
	timetz := introspect.PortableType{Kind: introspect.KindTime, Timezone: true}
	binary := introspect.PortableType{Kind: introspect.KindBinary}

	return map[string]introspect.PortableType{
		"INT":      integer,
		"INTEGER":  integer,
		"INT8":     integer,
		"BIGINT":   integer,
		"SMALLINT": smallint,
		"TINYINT":  smallint,

		"CHAR":         char,
		"VARCHAR":      varchar,
		"VARCHAR2":     varchar,
		"TEXT":         varchar,
		"LONG VARCHAR": varchar,

		"NUMERIC": numeric,
		"DECIMAL": numeric,
		"NUMBER":  numeric,
		"MONEY":   numeric,

		"FLOAT":  float,
		"FLOAT8": float,
		"REAL":   float,
		"DOUBLE": float,

		"TIMESTAMP":               timestamp,
		"TIMESTAMP WITH TIMEZONE": timestamp,
		"TIMESTAMPTZ":             timestamptz,
		"DATETIME":                timestamp,
		"SMALLDATETIME":           timestamp,
		"TIME":                    timeType,
		"TIME WITH TIMEZONE":      timeType,
		"TIMETZ":                  timetz,
		"INTERVAL":                {Kind: introspect.KindInterval},
		"DATE":                    {Kind: introspect.KindDate},

		"BINARY":         binary,
		"VARBINARY":      binary,
		"RAW":            binary,
		"BYTEA":          binary,
		"LONG VARBINARY": binary,
		"GEOMETRY":       binary,

		"BOOLEAN": {Kind: introspect.KindBoolean},
		"UUID":    {Kind: introspect.KindUUID},
	}
}

var (
	argsPattern     = regexp.MustCompile(`\((.*)\)`)
	charlenPattern  = regexp.MustCompile(`\(([\d,]+)\)`)
	intervalPattern = regexp.MustCompile(`(?i)^interval (.+)`)
	nextvalPattern  = regexp.MustCompile(`(nextval\(')([^']+)('.*$)`)
)

// Column builds a column descriptor from the raw catalog fields. dataType is
// the raw type string, defaultExpr the default expression ("" when absent)
// and schema qualifies unqualified sequence references in defaults. An
// unresolvable base type degrades to the unknown descriptor with a warning;
// the call never fails.
func (t *TypeTranslator) Column(name, dataType, defaultExpr string, nullable bool, schema string) introspect.Column {
	attype := strings.TrimSpace(argsPattern.ReplaceAllString(strings.ToLower(dataType), ""))

	charlen := ""
	if m := charlenPattern.FindStringSubmatch(dataType); m != nil {
		charlen = m[1]
	}

	var (
		posArgs      []int
		precision    int
		hasPrecision bool
		timezone     bool
		fields       string
	)

	switch {
	case attype == "numeric" || attype == "decimal" || attype == "number" || attype == "money":
		if prec, scale, ok := splitNumericArgs(charlen); ok {
			posArgs = []int{prec, scale}
		}
	case attype == "integer":
		// width is encoded in the base name
	case attype == "timestamptz" || attype == "timetz":
		timezone = true
		if n, err := strconv.Atoi(charlen); err == nil {
			precision, hasPrecision = n, true
		}
	case attype == "timestamp" || attype == "time":
		timezone = false
	case strings.HasPrefix(attype, "interval"):
		if n, err := strconv.Atoi(charlen); err == nil {
			precision, hasPrecision = n, true
		}
		if m := intervalPattern.FindStringSubmatch(attype); m != nil {
			fields = m[1]
		}
		attype = "interval"
	case attype == "date":
	case charlen != "":
		if n, err := strconv.Atoi(charlen); err == nil {
			posArgs = []int{n}
		}
	}

	proto, known := t.types[strings.ToUpper(attype)]
	if !known {
		logger.Warn("did not recognize type %q of column %q", attype, name)
		proto = introspect.PortableType{Kind: introspect.KindUnknown}
	}

	coltype := proto
	switch coltype.Kind {
	case introspect.KindNumeric:
		if len(posArgs) == 2 {
			coltype.Precision, coltype.Scale = posArgs[0], posArgs[1]
		}
	case introspect.KindChar, introspect.KindVarChar, introspect.KindBinary:
		if len(posArgs) == 1 {
			coltype.Length = posArgs[0]
		}
	case introspect.KindTimestamp, introspect.KindTime:
		if timezone {
			coltype.Timezone = true
		}
		if hasPrecision {
			coltype.Precision = precision
		}
	case introspect.KindInterval:
		coltype.Fields = fields
		if hasPrecision {
			coltype.Precision = precision
		}
	}

	autoincrement := false
	def := defaultExpr
	if def != "" {
		if m := nextvalPattern.FindStringSubmatch(def); m != nil {
			if coltype.Kind == introspect.KindInteger {
				autoincrement = true
			}
			// The default references a sequence. Qualify it with the quoted
			// schema name when the reference is bare and a schema is known.
			if !strings.Contains(m[2], ".") && schema != "" {
				def = m[1] + `"` + schema + `".` + m[2] + m[3]
			}
		}
	}

	return introspect.Column{
		Name:          name,
		Type:          coltype,
		Nullable:      nullable,
		Default:       def,
		Autoincrement: autoincrement,
		Comment:       def,
	}
}

// splitNumericArgs parses the "precision,scale" pair of a numeric type.
// A bare "numeric" carries no explicit precision or scale.
func splitNumericArgs(charlen string) (prec, scale int, ok bool) {
	before, after, found := strings.Cut(charlen, ",")
	if !found {
		return 0, 0, false
	}
	prec, err := strconv.Atoi(strings.TrimSpace(before))
	if err != nil {
		return 0, 0, false
	}
	scale, err = strconv.Atoi(strings.TrimSpace(after))
	if err != nil {
		return 0, 0, false
	}
	return prec, scale, true
}
