package domain

import (
	"time"
)

// Vendor representa um vendedor do marketplace.
type Vendor struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	Email     string    `json:"email"`
	Verified  bool      `json:"verified"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Category representa uma categoria de topo do catálogo (e.g., "Eletrônicos").
type Category struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	Image     string    `json:"image"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AttributeTemplate define um campo de especificação que a subcategoria exige
// dos vendedores (e.g., "brand", "screen_size"). Não gera SKUs.
type AttributeTemplate struct {
	Key      string   `json:"key"`
	Label    string   `json:"label"`
	Type     string   `json:"type"` // "text" | "number" | "select"
	Options  []string `json:"options,omitempty"`
	Required bool     `json:"required"`
	Unit     string   `json:"unit,omitempty"`
}

// VariantAxis é uma dimensão selecionável do produto (e.g., "Cor").
// A ordem de Values é a ordem de exibição e define o domínio admissível do eixo.
type VariantAxis struct {
	Key    string   `json:"key"`
	Label  string   `json:"label"`
	Values []string `json:"values"`
}

// VariantMatrix é o conjunto ordenado de eixos de uma subcategoria.
// Lista de eixos vazia significa que os produtos da subcategoria são "simples"
// (sem variantes). Invariante: as chaves dos eixos são únicas dentro da matriz.
type VariantMatrix struct {
	Axes []VariantAxis `json:"axes"`
}

// IsSimple informa se a matriz não gera variantes.
func (m VariantMatrix) IsSimple() bool {
	return len(m.Axes) == 0
}

// AxisByKey busca um eixo pela chave. Retorna false se a chave não pertence à matriz.
func (m VariantMatrix) AxisByKey(key string) (VariantAxis, bool) {
	for _, axis := range m.Axes {
		if axis.Key == key {
			return axis, true
		}
	}
	return VariantAxis{}, false
}

// HasValue informa se o valor pertence ao domínio do eixo.
func (a VariantAxis) HasValue(value string) bool {
	for _, v := range a.Values {
		if v == value {
			return true
		}
	}
	return false
}

// Subcategory agrupa produtos sob uma categoria e é dona da VariantMatrix
// e dos AttributeTemplates que governam seus produtos.
type Subcategory struct {
	ID                 string              `json:"id"`
	CategoryID         string              `json:"category_id"`
	Name               string              `json:"name"`
	Slug               string              `json:"slug"`
	AttributeTemplates []AttributeTemplate `json:"attribute_templates"`
	VariantMatrix      VariantMatrix       `json:"variant_matrix"`
	CreatedAt          time.Time           `json:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at"`
}
