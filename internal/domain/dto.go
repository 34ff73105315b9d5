package domain

// ProductCardDTO é o resumo de produto projetado pela consulta facetada.
// Carrega os metadados da flash sale e o preço efetivo já resolvido para
// exibição (sobre o MinPrice — nunca para checkout).
type ProductCardDTO struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Slug           string     `json:"slug"`
	VendorName     string     `json:"vendor_name"`
	MinPrice       float64    `json:"min_price"`
	MaxPrice       float64    `json:"max_price"`
	DefaultImage   string     `json:"default_image"`
	InStock        bool       `json:"in_stock"`
	HasVariants    bool       `json:"has_variants"`
	FlashSale      *FlashSale `json:"flash_sale,omitempty"`
	EffectivePrice *float64   `json:"effective_price,omitempty"`
}

// ProductDetailDTO é a projeção completa de um produto para a página de detalhe:
// o card mais a descrição, os atributos, a matriz da subcategoria e as variantes.
type ProductDetailDTO struct {
	ProductCardDTO
	Description   string             `json:"description"`
	Attributes    []ProductAttribute `json:"attributes"`
	VariantMatrix VariantMatrix      `json:"variant_matrix"`
	Variants      []Variant          `json:"variants"`
	BaseStock     int                `json:"base_stock,omitempty"`
	BaseSKU       string             `json:"base_sku,omitempty"`
}

// Facet é a agregação de uma chave de atributo sobre o resultado filtrado:
// os valores observados (na ordem de primeira ocorrência) e a contagem de
// pares (produto, variante) que carregam cada valor.
type Facet struct {
	Key    string         `json:"key"`
	Values []string       `json:"values"`
	Counts map[string]int `json:"counts"`
}

// FacetedSearchResult é a página de resultados da consulta facetada.
// Total reflete a contagem APÓS filtros e ANTES da paginação; os facets
// refletem o mesmo escopo.
type FacetedSearchResult struct {
	Facets   []Facet          `json:"facets"`
	Products []ProductCardDTO `json:"products"`
	Total    int              `json:"total"`
}

// Resolution é a saída do resolvedor de compatibilidade de variantes.
// MatchedVariant é nil quando a seleção está incompleta ou quando nenhuma
// variante corresponde exatamente — ausência não é erro.
type Resolution struct {
	MatchedVariant *Variant            `json:"matched_variant,omitempty"`
	DisabledValues map[string][]string `json:"disabled_values"`
	IsComplete     bool                `json:"is_complete"`
}

// VendorProductsPage é a listagem paginada do painel do vendedor.
type VendorProductsPage struct {
	Products []Product `json:"products"`
	Total    int       `json:"total"`
}
