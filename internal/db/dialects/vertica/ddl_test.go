package vertica

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"verticadialect/internal/introspect"
)

func TestQuoteIdent(t *testing.T) {
	assert.Equal(t, `"name"`, quoteIdent("name"))
	assert.Equal(t, `"odd""name"`, quoteIdent(`odd"name`))
	assert.Equal(t, `""`, quoteIdent(""))
}

func TestColumnSpec(t *testing.T) {
	d := New()

	tests := []struct {
		name string
		col  introspect.Column
		want string
	}{
		{
			name: "autoincrementing primary key",
			col: introspect.Column{
				Name:          "id",
				Type:          introspect.PortableType{Kind: introspect.KindInteger, Width: 64},
				Autoincrement: true,
				PrimaryKey:    true,
			},
			want: `"id" AUTO_INCREMENT NOT NULL`,
		},
		{
			name: "varchar with default",
			col: introspect.Column{
				Name:     "name",
				Type:     introspect.PortableType{Kind: introspect.KindVarChar, Length: 256},
				Nullable: true,
				Default:  "'unknown'",
			},
			want: `"name" VARCHAR(256) DEFAULT 'unknown'`,
		},
		{
			name: "not null numeric",
			col: introspect.Column{
				Name: "amount",
				Type: introspect.PortableType{Kind: introspect.KindNumeric, Precision: 18, Scale: 4},
			},
			want: `"amount" NUMERIC(18,4) NOT NULL`,
		},
		{
			name: "non primary key sequence default keeps its type",
			col: introspect.Column{
				Name:          "seq_col",
				Type:          introspect.PortableType{Kind: introspect.KindInteger, Width: 64},
				Nullable:      true,
				Default:       `nextval('"public".s')`,
				Autoincrement: true,
			},
			want: `"seq_col" INT DEFAULT nextval('"public".s')`,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, d.ColumnSpec(tc.col))
		})
	}
}
