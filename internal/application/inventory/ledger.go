package inventory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jhoicas/spa-ledger-api/internal/domain"
	"github.com/jhoicas/spa-ledger-api/internal/domain/entity"
	domaininv "github.com/jhoicas/spa-ledger-api/internal/domain/inventory"
	"github.com/jhoicas/spa-ledger-api/internal/domain/repository"
)

// DefaultMaxAttempts reintentos del ciclo leer-calcular-escribir ante un conflicto de versión.
const DefaultMaxAttempts = 3

// Ledger es el único escritor de products.stock. Cada escritura compara la versión
// leída (concurrencia optimista) y agrega el asiento correspondiente en la misma transacción.
type Ledger struct {
	txRunner    TxRunner
	productRepo repository.ProductRepository
	adjRepo     repository.StockAdjustmentRepository
	factory     domaininv.AdjustmentFactory
	maxAttempts int
	metrics     Metrics
	log         zerolog.Logger
}

// NewLedger construye el libro. maxAttempts <= 0 usa DefaultMaxAttempts; metrics nil descarta métricas.
func NewLedger(
	txRunner TxRunner,
	productRepo repository.ProductRepository,
	adjRepo repository.StockAdjustmentRepository,
	maxAttempts int,
	metrics Metrics,
	log zerolog.Logger,
) *Ledger {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if metrics == nil {
		metrics = NopMetrics{}
	}
	return &Ledger{
		txRunner:    txRunner,
		productRepo: productRepo,
		adjRepo:     adjRepo,
		maxAttempts: maxAttempts,
		metrics:     metrics,
		log:         log.With().Str("component", "ledger").Logger(),
	}
}

// Factory devuelve la fábrica de solicitudes que usa el libro.
func (l *Ledger) Factory() domaininv.AdjustmentFactory {
	return l.factory
}

// Retry ejecuta fn hasta maxAttempts veces mientras devuelva repository.ErrStaleVersion.
// fn debe releer todo lo que usa: cada intento es un ciclo completo leer-calcular-escribir.
// Agotados los intentos devuelve domain.ErrConcurrencyConflict.
func (l *Ledger) Retry(ctx context.Context, op string, fn func() error) error {
	for attempt := 1; attempt <= l.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := fn()
		if !errors.Is(err, repository.ErrStaleVersion) {
			return err
		}
		l.metrics.ObserveRetry(op)
		l.log.Debug().Str("op", op).Int("attempt", attempt).Msg("versión obsoleta, reintentando")
	}
	l.metrics.ObserveConflict(op)
	l.log.Warn().Str("op", op).Int("attempts", l.maxAttempts).Msg("reintentos agotados")
	return fmt.Errorf("%w: %s", domain.ErrConcurrencyConflict, op)
}

// ApplyAdjustment aplica una sola solicitud.
func (l *Ledger) ApplyAdjustment(ctx context.Context, req domaininv.AdjustmentRequest) (*entity.StockAdjustment, error) {
	out, err := l.ApplyBatch(ctx, []domaininv.AdjustmentRequest{req})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// ApplyBatch aplica todas las solicitudes o ninguna. Varias solicitudes sobre el mismo
// producto se acumulan en orden; si algún nivel intermedio queda negativo no se escribe nada.
func (l *Ledger) ApplyBatch(ctx context.Context, reqs []domaininv.AdjustmentRequest) ([]*entity.StockAdjustment, error) {
	if len(reqs) == 0 {
		return nil, fmt.Errorf("%w: lote vacío", domain.ErrValidation)
	}
	var out []*entity.StockAdjustment
	err := l.Retry(ctx, "apply_batch", func() error {
		plan, err := l.Prepare(ctx, reqs)
		if err != nil {
			return err
		}
		return l.txRunner.Run(ctx, func(repos repository.Repositories) error {
			out, err = plan.Write(ctx, repos)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	l.observe(out)
	return out, nil
}

// Reverse anula un asiento aplicando -QuantityChange como manual_adjustment con
// ReversalOf = adjustmentID y la misma referencia. No se revierte una reversión
// ni un asiento ya revertido.
func (l *Ledger) Reverse(ctx context.Context, adjustmentID, actorID, notes string) (*entity.StockAdjustment, error) {
	var out []*entity.StockAdjustment
	err := l.Retry(ctx, "reverse", func() error {
		original, err := l.adjRepo.GetByID(ctx, adjustmentID)
		if err != nil {
			return err
		}
		if original == nil {
			return domain.ErrNotFound
		}
		reversed, err := l.adjRepo.IsReversed(ctx, adjustmentID)
		if err != nil {
			return err
		}
		if reversed {
			return fmt.Errorf("%w: el asiento %s ya fue revertido", domain.ErrValidation, adjustmentID)
		}
		if notes == "" {
			notes = "Reversión de " + adjustmentID
		}
		req, err := l.factory.Reversal(original, domaininv.Meta{Notes: notes, ActorID: actorID})
		if err != nil {
			return err
		}
		plan, err := l.Prepare(ctx, []domaininv.AdjustmentRequest{req})
		if err != nil {
			return err
		}
		return l.txRunner.Run(ctx, func(repos repository.Repositories) error {
			out, err = plan.Write(ctx, repos)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	l.observe(out)
	l.log.Info().Str("adjustment_id", adjustmentID).Str("reversal_id", out[0].ID).Msg("asiento revertido")
	return out[0], nil
}

// Stocks lee stock y versión de los productos. Un id inexistente es domain.ErrNotFound.
func (l *Ledger) Stocks(ctx context.Context, ids []string) (map[string]entity.ProductStock, error) {
	stocks, err := l.productRepo.GetStocks(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		if _, ok := stocks[id]; !ok {
			return nil, fmt.Errorf("%w: producto %s", domain.ErrNotFound, id)
		}
	}
	return stocks, nil
}

// Prepare lee los productos involucrados y calcula el plan de escritura.
// Es la mitad lectura-cálculo; BatchPlan.Write es la mitad escritura dentro de la tx del caller.
func (l *Ledger) Prepare(ctx context.Context, reqs []domaininv.AdjustmentRequest) (*BatchPlan, error) {
	for _, req := range reqs {
		if err := validateRequest(req); err != nil {
			return nil, err
		}
	}
	stocks, err := l.Stocks(ctx, productIDs(reqs))
	if err != nil {
		return nil, err
	}
	return l.Plan(stocks, reqs)
}

// Plan calcula niveles nuevos sobre una lectura ya hecha con Stocks.
func (l *Ledger) Plan(stocks map[string]entity.ProductStock, reqs []domaininv.AdjustmentRequest) (*BatchPlan, error) {
	plan := &BatchPlan{
		start:  make(map[string]entity.ProductStock, len(stocks)),
		levels: make(map[string]int, len(stocks)),
	}
	now := time.Now().UTC()
	for _, req := range reqs {
		if err := validateRequest(req); err != nil {
			return nil, err
		}
		st, ok := stocks[req.ProductID]
		if !ok {
			return nil, fmt.Errorf("%w: producto %s", domain.ErrNotFound, req.ProductID)
		}
		level, seen := plan.levels[req.ProductID]
		if req.Type == entity.AdjustmentInitial && (st.Version != 0 || seen) {
			return nil, fmt.Errorf("%w: el producto %s ya tiene movimientos, no admite stock inicial", domain.ErrValidation, req.ProductID)
		}
		if !seen {
			plan.start[req.ProductID] = st
			level = st.Stock
		}
		level += req.Delta
		if level < 0 {
			return nil, fmt.Errorf("%w: producto %s, disponible %d, solicitado %d",
				domain.ErrInsufficientStock, req.ProductID, plan.levelOr(req.ProductID, st.Stock), -req.Delta)
		}
		plan.levels[req.ProductID] = level
		plan.adjustments = append(plan.adjustments, &entity.StockAdjustment{
			ID:             uuid.New().String(),
			ProductID:      req.ProductID,
			QuantityChange: req.Delta,
			NewStockLevel:  level,
			Type:           req.Type,
			Notes:          req.Notes,
			ActorID:        req.ActorID,
			ReferenceID:    req.ReferenceID,
			ReversalOf:     req.ReversalOf,
			CreatedAt:      now,
		})
	}
	return plan, nil
}

func (l *Ledger) observe(adjs []*entity.StockAdjustment) {
	counts := make(map[entity.AdjustmentType]int)
	for _, a := range adjs {
		counts[a.Type]++
	}
	for t, n := range counts {
		l.metrics.ObserveAdjustments(t, n)
	}
}

// BatchPlan escrituras calculadas por Prepare: un CAS por producto (ordenados por id)
// y los asientos en el orden de las solicitudes.
type BatchPlan struct {
	start       map[string]entity.ProductStock
	levels      map[string]int
	adjustments []*entity.StockAdjustment
}

// Empty indica si no hay nada que escribir.
func (p *BatchPlan) Empty() bool {
	return len(p.adjustments) == 0
}

// Adjustments asientos que escribirá Write.
func (p *BatchPlan) Adjustments() []*entity.StockAdjustment {
	return p.adjustments
}

// StartStock stock y versión leídos de un producto del plan.
func (p *BatchPlan) StartStock(productID string) (entity.ProductStock, bool) {
	st, ok := p.start[productID]
	return st, ok
}

func (p *BatchPlan) levelOr(productID string, fallback int) int {
	if lv, ok := p.levels[productID]; ok {
		return lv
	}
	return fallback
}

// Write hace el compare-and-swap de cada producto y agrega los asientos usando los
// repositorios de la transacción del caller. Devuelve repository.ErrStaleVersion si
// algún producto cambió desde Prepare.
func (p *BatchPlan) Write(ctx context.Context, repos repository.Repositories) ([]*entity.StockAdjustment, error) {
	ids := make([]string, 0, len(p.levels))
	for id := range p.levels {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if err := repos.Products.CompareAndSwapStock(ctx, id, p.start[id].Version, p.levels[id]); err != nil {
			return nil, err
		}
	}
	for _, adj := range p.adjustments {
		if err := repos.Adjustments.Append(ctx, adj); err != nil {
			return nil, err
		}
	}
	return p.adjustments, nil
}

func validateRequest(req domaininv.AdjustmentRequest) error {
	if req.ProductID == "" {
		return fmt.Errorf("%w: product_id requerido", domain.ErrValidation)
	}
	if req.Delta == 0 {
		return fmt.Errorf("%w: quantity_change no puede ser cero", domain.ErrValidation)
	}
	if !req.Type.Valid() {
		return fmt.Errorf("%w: tipo de ajuste %q", domain.ErrValidation, req.Type)
	}
	return nil
}

func productIDs(reqs []domaininv.AdjustmentRequest) []string {
	seen := make(map[string]struct{}, len(reqs))
	ids := make([]string, 0, len(reqs))
	for _, r := range reqs {
		if _, ok := seen[r.ProductID]; ok {
			continue
		}
		seen[r.ProductID] = struct{}{}
		ids = append(ids, r.ProductID)
	}
	sort.Strings(ids)
	return ids
}
