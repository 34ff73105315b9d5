package domain

import (
	"fmt"
	"time"

	apperror "gocatalog/internal/errors"
)

// VariantCombo mapeia chave de eixo -> valor escolhido naquele eixo.
// Um combo é *completo* em relação a uma matriz quando possui uma entrada
// para cada eixo da matriz.
type VariantCombo map[string]string

// NewVariantCombo constrói um combo COMPLETO validado contra a matriz dona.
// Rejeita na fronteira (em vez de falhar fundo na lógica de filtragem):
//   - chave presente no combo que não existe na matriz;
//   - valor fora do domínio do eixo;
//   - eixo da matriz sem entrada no combo.
func NewVariantCombo(matrix VariantMatrix, raw map[string]string) (VariantCombo, error) {
	for key, value := range raw {
		axis, ok := matrix.AxisByKey(key)
		if !ok {
			return nil, apperror.NewInconsistentDataError(fmt.Sprintf("o combo referencia o eixo '%s', que não existe na matriz.", key))
		}
		if !axis.HasValue(value) {
			return nil, apperror.NewInconsistentDataError(fmt.Sprintf("o valor '%s' não pertence ao domínio do eixo '%s'.", value, key))
		}
	}
	for _, axis := range matrix.Axes {
		if _, ok := raw[axis.Key]; !ok {
			return nil, apperror.NewInconsistentDataError(fmt.Sprintf("o combo não possui entrada para o eixo '%s'.", axis.Key))
		}
	}

	combo := make(VariantCombo, len(raw))
	for key, value := range raw {
		combo[key] = value
	}
	return combo, nil
}

// IsCompleteFor informa se o combo possui entrada para todos os eixos da matriz.
func (c VariantCombo) IsCompleteFor(matrix VariantMatrix) bool {
	for _, axis := range matrix.Axes {
		if c[axis.Key] == "" {
			return false
		}
	}
	return true
}

// Equals compara dois combos entrada a entrada.
func (c VariantCombo) Equals(other VariantCombo) bool {
	if len(c) != len(other) {
		return false
	}
	for key, value := range c {
		if other[key] != value {
			return false
		}
	}
	return true
}

// Variant é um SKU concreto de um produto: um combo completo, preço e estoque próprios.
type Variant struct {
	Combo  VariantCombo `json:"combo"`
	SKU    string       `json:"sku"` // Único dentro do produto
	Price  float64      `json:"price"`
	Stock  int          `json:"stock"`
	Images []string     `json:"images"`
}

// FlashSale é um desconto promocional limitado no tempo e, opcionalmente,
// em quantidade. Invariante: SoldCount <= StockLimit quando StockLimit > 0.
type FlashSale struct {
	DiscountType  string    `json:"discount_type"` // "percentage" | "fixed"
	DiscountValue float64   `json:"discount_value"`
	StartDate     time.Time `json:"start_date"`
	EndDate       time.Time `json:"end_date"`
	StockLimit    int       `json:"stock_limit,omitempty"` // 0 = sem limite de quantidade
	SoldCount     int       `json:"sold_count"`
}

// Tipos de desconto admitidos em FlashSale.DiscountType.
const (
	DiscountPercentage = "percentage"
	DiscountFixed      = "fixed"
)

// Product é a entidade principal do catálogo. Existe em duas formas mutuamente
// exclusivas:
//   - simples (HasVariants=false): BasePrice/BaseStock/BaseSKU próprios, Variants vazio;
//   - com variantes (HasVariants=true): Variants não vazio e os agregados
//     MinPrice/MaxPrice/TotalStock/InStock DERIVADOS das variantes.
//
// Os agregados nunca são editados diretamente: DeriveAggregates é a única
// fonte deles e deve ser invocada a cada mutação de variantes ou campos base.
type Product struct {
	ID            string             `json:"id"`
	VendorID      string             `json:"vendor_id"`
	CategoryID    string             `json:"category_id"`
	SubcategoryID string             `json:"subcategory_id"`
	Name          string             `json:"name"`
	Slug          string             `json:"slug"`
	Description   string             `json:"description"`
	DefaultImage  string             `json:"default_image"`
	Attributes    []ProductAttribute `json:"attributes"`

	HasVariants bool      `json:"has_variants"`
	BasePrice   float64   `json:"base_price,omitempty"`
	BaseStock   int       `json:"base_stock,omitempty"`
	BaseSKU     string    `json:"base_sku,omitempty"`
	Variants    []Variant `json:"variants"`

	// Agregados derivados (ver DeriveAggregates)
	MinPrice   float64 `json:"min_price"`
	MaxPrice   float64 `json:"max_price"`
	TotalStock int     `json:"total_stock"`
	InStock    bool    `json:"in_stock"`

	FlashSale *FlashSale `json:"flash_sale,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ProductAttribute é o valor efetivo de um AttributeTemplate em um produto.
type ProductAttribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// DeriveAggregates recomputa MinPrice/MaxPrice/TotalStock/InStock a partir da
// fonte (variantes ou campos base). Centralizado aqui para que os invariantes
// MinPrice <= MaxPrice e InStock == (TotalStock > 0) valham em todos os call
// sites, e não apenas nos pontos de mutação que lembraram de recomputar.
func (p *Product) DeriveAggregates() {
	if !p.HasVariants {
		p.MinPrice = p.BasePrice
		p.MaxPrice = p.BasePrice
		p.TotalStock = p.BaseStock
		p.InStock = p.BaseStock > 0
		return
	}

	p.MinPrice = 0
	p.MaxPrice = 0
	p.TotalStock = 0
	for i, v := range p.Variants {
		if i == 0 || v.Price < p.MinPrice {
			p.MinPrice = v.Price
		}
		if i == 0 || v.Price > p.MaxPrice {
			p.MaxPrice = v.Price
		}
		p.TotalStock += v.Stock
	}
	p.InStock = p.TotalStock > 0
}

// ValidateAgainstMatrix verifica a integridade do produto em relação à matriz
// da sua subcategoria. Violações aqui são defeitos do snapshot do catálogo
// (InconsistentDataError), nunca erro do usuário:
//   - produto com variantes mas lista vazia (ou o inverso);
//   - combo de variante incompleto ou com valores fora do domínio;
//   - duas variantes com combos idênticos;
//   - flash sale com SoldCount acima do StockLimit.
func (p *Product) ValidateAgainstMatrix(matrix VariantMatrix) error {
	if p.HasVariants && len(p.Variants) == 0 {
		return apperror.NewInconsistentDataError(fmt.Sprintf("produto '%s' marcado com variantes, mas sem nenhuma variante.", p.Slug))
	}
	if !p.HasVariants && len(p.Variants) > 0 {
		return apperror.NewInconsistentDataError(fmt.Sprintf("produto simples '%s' carrega variantes.", p.Slug))
	}

	for i, v := range p.Variants {
		if _, err := NewVariantCombo(matrix, v.Combo); err != nil {
			return err
		}
		if v.Price < 0 {
			return apperror.NewInconsistentDataError(fmt.Sprintf("variante '%s' com preço negativo.", v.SKU))
		}
		if v.Stock < 0 {
			return apperror.NewInconsistentDataError(fmt.Sprintf("variante '%s' com estoque negativo.", v.SKU))
		}
		for j := 0; j < i; j++ {
			if p.Variants[j].Combo.Equals(v.Combo) {
				return apperror.NewInconsistentDataError(fmt.Sprintf("variantes '%s' e '%s' compartilham o mesmo combo.", p.Variants[j].SKU, v.SKU))
			}
		}
	}

	if err := p.FlashSale.Validate(); err != nil {
		return err
	}
	return nil
}

// Validate verifica o invariante de quantidade da flash sale.
// Um receptor nil é válido (produto sem promoção).
func (f *FlashSale) Validate() error {
	if f == nil {
		return nil
	}
	if f.StockLimit > 0 && f.SoldCount > f.StockLimit {
		return apperror.NewInconsistentDataError(fmt.Sprintf("flash sale com soldCount (%d) acima do stockLimit (%d).", f.SoldCount, f.StockLimit))
	}
	return nil
}

// --- Estruturas Auxiliares (Filtros e Contexto) ---

// Chaves de ordenação aceitas por CatalogQuery.SortBy.
const (
	SortPriceAsc  = "price-asc"
	SortPriceDesc = "price-desc"
	SortNewest    = "newest"
)

// CatalogQuery define os parâmetros da consulta facetada:
// escopo, filtros de atributo (chave -> valores permitidos), busca textual,
// ordenação e paginação (Page é 1-based).
type CatalogQuery struct {
	CategorySlug    string
	SubcategorySlug string
	Filters         map[string][]string
	SearchQuery     string
	SortBy          string
	Page            int
	Limit           int
}

// Context é uma interface que encapsula o Go context.Context.
// É usado para propagar o timeout e sinais de cancelamento pelas camadas.
// Isso evita a dependência direta do pacote "context".
type Context interface{}
