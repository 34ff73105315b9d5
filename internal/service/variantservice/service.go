package variantservice

import (
	"fmt"

	"gocatalog/internal/domain"
	apperror "gocatalog/internal/errors"
	"gocatalog/internal/pkg/logger"
)

// Service implementa o resolvedor de compatibilidade de variantes.
// É uma função pura sobre o snapshot: não faz I/O, não bloqueia e não muta
// nada, então chamadas concorrentes sobre os mesmos dados são seguras.
type Service struct {
	logger logger.Logger
}

// NewService cria e retorna uma nova instância do Serviço de Variantes.
func NewService(log logger.Logger) *Service {
	return &Service{logger: log}
}

// Resolve recebe a matriz da subcategoria, as variantes do produto e a seleção
// parcial do comprador, e computa:
//   - IsComplete: a seleção cobre todos os eixos da matriz;
//   - MatchedVariant: a variante cujo combo é idêntico à seleção (apenas quando
//     completa; ausência de correspondência NÃO é erro — fica nil);
//   - DisabledValues: por eixo, os valores que não levariam a nenhuma variante
//     em estoque dada a seleção atual nos demais eixos.
//
// Chaves de seleção que não existem na matriz são entradas obsoletas do cliente
// e são ignoradas. Variantes malformadas no snapshot retornam
// InconsistentDataError antes de qualquer cômputo.
func (s *Service) Resolve(matrix domain.VariantMatrix, variants []domain.Variant, selection map[string]string) (domain.Resolution, error) {

	// 1. Integridade do snapshot: todo combo deve ser completo e dentro do domínio.
	for i, v := range variants {
		if _, err := domain.NewVariantCombo(matrix, v.Combo); err != nil {
			s.logger.Warn("Variante malformada no snapshot do catálogo.", map[string]interface{}{
				"sku": v.SKU, "index": i, "error": err.Error(),
			})
			return domain.Resolution{}, err
		}
		for j := 0; j < i; j++ {
			if variants[j].Combo.Equals(v.Combo) {
				return domain.Resolution{}, apperror.NewInconsistentDataError(
					fmt.Sprintf("variantes '%s' e '%s' compartilham o mesmo combo.", variants[j].SKU, v.SKU))
			}
		}
	}

	// 2. Matriz vazia: produto simples. Nada a desabilitar, seleção
	// vacuamente completa, e nenhuma variante a casar.
	if matrix.IsSimple() {
		return domain.Resolution{
			MatchedVariant: nil,
			DisabledValues: map[string][]string{},
			IsComplete:     true,
		}, nil
	}

	// 3. Descartar chaves de seleção obsoletas (eixo não existe na matriz).
	effective := make(domain.VariantCombo, len(selection))
	for key, value := range selection {
		if _, ok := matrix.AxisByKey(key); !ok {
			s.logger.Debug("Chave de seleção obsoleta ignorada.", map[string]interface{}{"key": key})
			continue
		}
		if value != "" {
			effective[key] = value
		}
	}

	isComplete := effective.IsCompleteFor(matrix)

	// 4. Variante casada: apenas quando a seleção é completa, a variante cujo
	// combo coincide com a seleção em todos os eixos.
	var matched *domain.Variant
	if isComplete {
		for i := range variants {
			candidate := &variants[i]
			agrees := true
			for _, axis := range matrix.Axes {
				if candidate.Combo[axis.Key] != effective[axis.Key] {
					agrees = false
					break
				}
			}
			if agrees {
				matched = candidate
				break
			}
		}
	}

	// 5. Valores desabilitados: para cada (eixo, valor), montar uma seleção de
	// teste com o eixo forçado ao valor. O valor é desabilitado se nenhuma
	// variante EM ESTOQUE concorda com a seleção de teste em todas as chaves
	// presentes nela. Cada par é avaliado de forma independente, então o
	// resultado evolui de forma incremental conforme o comprador escolhe um
	// eixo por vez.
	disabled := make(map[string][]string, len(matrix.Axes))
	for _, axis := range matrix.Axes {
		for _, value := range axis.Values {
			trial := make(domain.VariantCombo, len(effective)+1)
			for k, v := range effective {
				trial[k] = v
			}
			trial[axis.Key] = value

			available := false
			for i := range variants {
				if variants[i].Stock <= 0 {
					continue
				}
				agrees := true
				for k, v := range trial {
					if variants[i].Combo[k] != v {
						agrees = false
						break
					}
				}
				if agrees {
					available = true
					break
				}
			}

			if !available {
				disabled[axis.Key] = append(disabled[axis.Key], value)
			}
		}
	}

	return domain.Resolution{
		MatchedVariant: matched,
		DisabledValues: disabled,
		IsComplete:     isComplete,
	}, nil
}
