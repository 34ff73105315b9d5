package pricingservice

import (
	"time"

	"gocatalog/internal/domain"
	"gocatalog/internal/pkg/logger"
)

// Service implementa o resolvedor de preço efetivo sob flash sale.
// Função pura do relógio de parede e do contador acumulado de vendas: nunca
// incrementa SoldCount — isso pertence ao fluxo de fulfillment de pedidos,
// fora deste serviço.
type Service struct {
	logger logger.Logger
	now    func() time.Time
}

// NewService cria e retorna uma nova instância do Serviço de Preços,
// usando o relógio real do sistema.
func NewService(log logger.Logger) *Service {
	return NewServiceWithClock(log, time.Now)
}

// NewServiceWithClock permite injetar o relógio (usado nos testes de fronteira
// da janela da promoção).
func NewServiceWithClock(log logger.Logger, now func() time.Time) *Service {
	return &Service{logger: log, now: now}
}

// EffectivePrice computa o preço atualmente efetivo de um item sob uma flash
// sale opcional. Retorna ok=false ("none") quando:
//   - não há promoção;
//   - o instante atual está fora da janela [StartDate, EndDate] (inclusiva);
//   - a promoção tem limite de quantidade e SoldCount >= StockLimit.
//
// Caso contrário: percentage => basePrice * (1 - DiscountValue/100);
// fixed => max(0, basePrice - DiscountValue). Resultados negativos são
// grampeados em zero; os valores de desconto em si são validados na escrita
// do catálogo, não aqui.
func (s *Service) EffectivePrice(basePrice float64, sale *domain.FlashSale) (float64, bool, error) {
	if sale == nil {
		return 0, false, nil
	}

	// SoldCount acima do StockLimit é snapshot corrompido, não promoção esgotada.
	if err := sale.Validate(); err != nil {
		s.logger.Warn("Flash sale com contagem de vendas inconsistente.", map[string]interface{}{
			"sold_count": sale.SoldCount, "stock_limit": sale.StockLimit,
		})
		return 0, false, err
	}

	now := s.now()
	if now.Before(sale.StartDate) || now.After(sale.EndDate) {
		return 0, false, nil
	}
	if sale.StockLimit > 0 && sale.SoldCount >= sale.StockLimit {
		return 0, false, nil
	}

	var price float64
	switch sale.DiscountType {
	case domain.DiscountPercentage:
		price = basePrice * (1 - sale.DiscountValue/100)
	case domain.DiscountFixed:
		price = basePrice - sale.DiscountValue
	default:
		// Tipo desconhecido no snapshot: tratar como promoção inativa.
		s.logger.Warn("Tipo de desconto desconhecido na flash sale.", map[string]interface{}{
			"discount_type": sale.DiscountType,
		})
		return 0, false, nil
	}

	if price < 0 {
		price = 0
	}
	return price, true, nil
}

// IsActive informa se a flash sale está atualmente ativa (mesmas regras de
// janela e quantidade de EffectivePrice).
func (s *Service) IsActive(sale *domain.FlashSale) (bool, error) {
	if sale == nil {
		return false, nil
	}
	if err := sale.Validate(); err != nil {
		return false, err
	}
	now := s.now()
	if now.Before(sale.StartDate) || now.After(sale.EndDate) {
		return false, nil
	}
	if sale.StockLimit > 0 && sale.SoldCount >= sale.StockLimit {
		return false, nil
	}
	return true, nil
}
