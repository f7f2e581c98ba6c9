package vertica

import "verticadialect/internal/introspect"

// quoteIdent wraps an identifier in double quotes for DDL text.
func quoteIdent(name string) string {
	quoted := make([]byte, 0, len(name)+2)
	quoted = append(quoted, '"')
	for i := 0; i < len(name); i++ {
		if name[i] == '"' {
			quoted = append(quoted, '"')
		}
		quoted = append(quoted, name[i])
	}
	return string(append(quoted, '"'))
}

// ColumnSpec renders the column clause of a CREATE TABLE statement. An
// autoincrementing primary-key column becomes AUTO_INCREMENT instead of an
// explicit type plus sequence default.
func (d *Dialect) ColumnSpec(col introspect.Column) string {
	spec := quoteIdent(col.Name)
	if col.PrimaryKey && col.Autoincrement {
		spec += " AUTO_INCREMENT"
	} else {
		spec += " " + col.Type.String()
		if col.Default != "" {
			spec += " DEFAULT " + col.Default
		}
	}
	if !col.Nullable {
		spec += " NOT NULL"
	}
	return spec
}
