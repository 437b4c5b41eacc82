package transform

import (
	"fmt"
	"strings"
)

type Type string

const (
	TypeString  Type = "string"
	TypeInteger Type = "integer"
	TypeDate    Type = "date"
	TypeDouble  Type = "double"
)

// ParseType accepts the type names used in pipeline files, including the
// engine aliases long/int/float.
func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "string", "str":
		return TypeString, nil
	case "integer", "int", "long", "int64", "bigint":
		return TypeInteger, nil
	case "date":
		return TypeDate, nil
	case "double", "float", "float64":
		return TypeDouble, nil
	}
	return "", fmt.Errorf("unknown column type %q", s)
}

type Field struct {
	Name string `yaml:"name"`
	Type Type   `yaml:"type"`
}

// Schema is an ordered list of output columns.
type Schema []Field

func (s Schema) Names() []string {
	out := make([]string, len(s))
	for i, f := range s {
		out[i] = f.Name
	}
	return out
}

// Validate checks for empty, duplicate and untyped fields.
func (s Schema) Validate() error {
	if len(s) == 0 {
		return fmt.Errorf("schema has no fields")
	}
	seen := make(map[string]bool, len(s))
	for i, f := range s {
		if f.Name == "" {
			return fmt.Errorf("schema field %d has no name", i)
		}
		if seen[f.Name] {
			return fmt.Errorf("schema field %q declared twice", f.Name)
		}
		seen[f.Name] = true
		if _, err := ParseType(string(f.Type)); err != nil {
			return fmt.Errorf("schema field %q: %w", f.Name, err)
		}
	}
	return nil
}

// Normalized returns a copy with every type spelled canonically.
func (s Schema) Normalized() (Schema, error) {
	out := make(Schema, len(s))
	for i, f := range s {
		t, err := ParseType(string(f.Type))
		if err != nil {
			return nil, fmt.Errorf("schema field %q: %w", f.Name, err)
		}
		out[i] = Field{Name: f.Name, Type: t}
	}
	return out, nil
}

// DefaultSchema is the fuel price table layout.
func DefaultSchema() Schema {
	return Schema{
		{"regiao_sigla", TypeString},
		{"estado_sigla", TypeString},
		{"municipio", TypeString},
		{"revenda", TypeString},
		{"cnpj_da_revenda", TypeString},
		{"nome_da_rua", TypeString},
		{"numero_rua", TypeInteger},
		{"complemento", TypeString},
		{"bairro", TypeString},
		{"cep", TypeString},
		{"produto", TypeString},
		{"data_da_coleta", TypeDate},
		{"valor_de_venda", TypeDouble},
		{"valor_de_compra", TypeDouble},
		{"unidade_de_medida", TypeString},
		{"bandeira", TypeString},
		{ColumnYear, TypeInteger},
		{ColumnSemestre, TypeInteger},
		{ColumnInputFileName, TypeString},
	}
}
