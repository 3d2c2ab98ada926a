package inventory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/spa-ledger-api/internal/application/dto"
	"github.com/jhoicas/spa-ledger-api/internal/domain"
	"github.com/jhoicas/spa-ledger-api/internal/domain/entity"
	domaininv "github.com/jhoicas/spa-ledger-api/internal/domain/inventory"
	"github.com/jhoicas/spa-ledger-api/internal/domain/repository"
)

// Prefijos de código de comprobante: PN entrada, PX salida.
const (
	slipPrefixImport = "PN"
	slipPrefixExport = "PX"
)

// SlipUseCase contabiliza comprobantes de bodega (IMPORT/EXPORT). Cada línea es un asiento
// manual_adjustment con ReferenceID = id del comprobante, escrito en el mismo lote que el comprobante.
type SlipUseCase struct {
	ledger   *Ledger
	txRunner TxRunner
	slipRepo repository.WarehouseSlipRepository
	products repository.ProductRepository
	log      zerolog.Logger
}

// NewSlipUseCase construye el caso de uso.
func NewSlipUseCase(
	ledger *Ledger,
	txRunner TxRunner,
	slipRepo repository.WarehouseSlipRepository,
	products repository.ProductRepository,
	log zerolog.Logger,
) *SlipUseCase {
	return &SlipUseCase{
		ledger:   ledger,
		txRunner: txRunner,
		slipRepo: slipRepo,
		products: products,
		log:      log.With().Str("component", "warehouse_slip").Logger(),
	}
}

// CreateSlip valida las líneas, genera un asiento por línea y guarda el comprobante como posted,
// todo en una transacción. Un EXPORT sin stock suficiente no escribe nada.
// Las líneas IMPORT con precio unitario recalculan el costo promedio ponderado.
func (uc *SlipUseCase) CreateSlip(ctx context.Context, actorID string, in dto.CreateSlipRequest) (*dto.SlipResponse, error) {
	slipType := entity.SlipType(strings.ToUpper(in.Type))
	if !slipType.Valid() {
		return nil, fmt.Errorf("%w: tipo de comprobante %q", domain.ErrValidation, in.Type)
	}
	if slipType == entity.SlipExport && in.SupplierID != "" {
		return nil, fmt.Errorf("%w: supplier_id solo aplica a comprobantes IMPORT", domain.ErrValidation)
	}
	items, err := slipItems(in.Items)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	slip := &entity.WarehouseSlip{
		ID:         uuid.New().String(),
		Code:       newSlipCode(slipType, now),
		Type:       slipType,
		Status:     entity.SlipStatusPosted,
		SupplierID: in.SupplierID,
		Notes:      in.Notes,
		Items:      items,
		CreatedBy:  actorID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	meta := domaininv.Meta{Notes: slipNote(slip), ActorID: actorID, ReferenceID: slip.ID}
	reqs := make([]domaininv.AdjustmentRequest, 0, len(items))
	for _, it := range items {
		req, err := uc.ledger.Factory().SlipLine(slipType, it.ProductID, it.Quantity, meta)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, req)
	}

	var written []*entity.StockAdjustment
	err = uc.ledger.Retry(ctx, "create_slip", func() error {
		plan, err := uc.ledger.Prepare(ctx, reqs)
		if err != nil {
			return err
		}
		costs, err := uc.importCosts(ctx, slip, plan)
		if err != nil {
			return err
		}
		return uc.txRunner.Run(ctx, func(repos repository.Repositories) error {
			written, err = plan.Write(ctx, repos)
			if err != nil {
				return err
			}
			for _, id := range sortedKeys(costs) {
				if err := repos.Products.UpdateCost(ctx, id, costs[id]); err != nil {
					return err
				}
			}
			return repos.Slips.Create(ctx, slip)
		})
	})
	if err != nil {
		return nil, err
	}
	uc.ledger.observe(written)
	uc.log.Info().Str("slip_id", slip.ID).Str("code", slip.Code).Str("type", string(slip.Type)).
		Int("lines", len(items)).Msg("comprobante contabilizado")
	return toSlipResponse(slip), nil
}

// UpdateSlip reemplaza las líneas. Por producto aplica una corrección (new_qty - old_qty) con el
// signo del tipo de comprobante; todas en un solo lote junto con el cambio de líneas.
// Si otro escritor cambió el comprobante después de leerlo, el lote se descarta y se relee.
func (uc *SlipUseCase) UpdateSlip(ctx context.Context, actorID, id string, in dto.UpdateSlipRequest) (*dto.SlipResponse, error) {
	items, err := slipItems(in.Items)
	if err != nil {
		return nil, err
	}
	var slip *entity.WarehouseSlip
	var written []*entity.StockAdjustment
	err = uc.ledger.Retry(ctx, "update_slip", func() error {
		slip, err = uc.get(ctx, id)
		if err != nil {
			return err
		}
		readVersion := slip.Version
		oldQty := slip.QuantitiesByProduct()
		slip.Items = items
		slip.UpdatedAt = time.Now().UTC()
		newQty := slip.QuantitiesByProduct()

		meta := domaininv.Meta{Notes: "Corrección de " + slip.Code, ActorID: actorID, ReferenceID: slip.ID}
		var reqs []domaininv.AdjustmentRequest
		for _, pid := range unionKeys(oldQty, newQty) {
			req, ok, err := uc.ledger.Factory().SlipCorrection(slip.Type, pid, newQty[pid]-oldQty[pid], meta)
			if err != nil {
				return err
			}
			if ok {
				reqs = append(reqs, req)
			}
		}
		plan := &BatchPlan{}
		if len(reqs) > 0 {
			if plan, err = uc.ledger.Prepare(ctx, reqs); err != nil {
				return err
			}
		}
		return uc.txRunner.Run(ctx, func(repos repository.Repositories) error {
			written, err = plan.Write(ctx, repos)
			if err != nil {
				return err
			}
			if err := repos.Slips.ReplaceItems(ctx, slip, readVersion); err != nil {
				return err
			}
			slip.Version = readVersion + 1
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	uc.ledger.observe(written)
	uc.log.Info().Str("slip_id", slip.ID).Int("corrections", len(written)).Msg("comprobante actualizado")
	return toSlipResponse(slip), nil
}

// DeleteSlip anula en un lote cada asiento del comprobante que no sea reversión ni esté ya
// revertido, y borra el comprobante. Si el stock no alcanza (IMPORT ya consumido) no se borra nada.
// Los asientos se leen con la versión del comprobante; una edición concurrente fuerza otra lectura.
func (uc *SlipUseCase) DeleteSlip(ctx context.Context, actorID, id string) error {
	var written []*entity.StockAdjustment
	err := uc.ledger.Retry(ctx, "delete_slip", func() error {
		slip, err := uc.get(ctx, id)
		if err != nil {
			return err
		}
		adjs, err := uc.ledger.adjRepo.ListByReference(ctx, slip.ID)
		if err != nil {
			return err
		}
		reversed := make(map[string]bool)
		for _, a := range adjs {
			if a.IsReversal() {
				reversed[a.ReversalOf] = true
			}
		}
		meta := domaininv.Meta{Notes: "Anulación de " + slip.Code, ActorID: actorID, ReferenceID: slip.ID}
		var reqs []domaininv.AdjustmentRequest
		for _, a := range adjs {
			if a.IsReversal() || reversed[a.ID] {
				continue
			}
			req, err := uc.ledger.Factory().Reversal(a, meta)
			if err != nil {
				return err
			}
			reqs = append(reqs, req)
		}
		plan := &BatchPlan{}
		if len(reqs) > 0 {
			if plan, err = uc.ledger.Prepare(ctx, reqs); err != nil {
				return err
			}
		}
		return uc.txRunner.Run(ctx, func(repos repository.Repositories) error {
			written, err = plan.Write(ctx, repos)
			if err != nil {
				return err
			}
			return repos.Slips.Delete(ctx, slip.ID, slip.Version)
		})
	})
	if err != nil {
		return err
	}
	uc.ledger.observe(written)
	uc.log.Info().Str("slip_id", id).Int("reversals", len(written)).Msg("comprobante anulado")
	return nil
}

// GetSlip obtiene un comprobante por ID.
func (uc *SlipUseCase) GetSlip(ctx context.Context, id string) (*dto.SlipResponse, error) {
	slip, err := uc.get(ctx, id)
	if err != nil {
		return nil, err
	}
	return toSlipResponse(slip), nil
}

// ListSlips lista comprobantes, opcionalmente filtrados por tipo.
func (uc *SlipUseCase) ListSlips(ctx context.Context, in dto.SlipListRequest) ([]dto.SlipResponse, error) {
	in.DefaultPage()
	list, err := uc.slipRepo.List(ctx, entity.SlipType(strings.ToUpper(in.Type)), in.Limit, in.Offset)
	if err != nil {
		return nil, err
	}
	out := make([]dto.SlipResponse, 0, len(list))
	for _, s := range list {
		out = append(out, *toSlipResponse(s))
	}
	return out, nil
}

func (uc *SlipUseCase) get(ctx context.Context, id string) (*entity.WarehouseSlip, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: id requerido", domain.ErrValidation)
	}
	slip, err := uc.slipRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if slip == nil {
		return nil, domain.ErrNotFound
	}
	return slip, nil
}

// importCosts recalcula el costo promedio ponderado de los productos con precio unitario en un IMPORT.
// Lee el producto después de Prepare: si la versión ya no coincide el intento se repite.
func (uc *SlipUseCase) importCosts(ctx context.Context, slip *entity.WarehouseSlip, plan *BatchPlan) (map[string]decimal.Decimal, error) {
	if slip.Type != entity.SlipImport {
		return nil, nil
	}
	costs := make(map[string]decimal.Decimal)
	stock := make(map[string]int)
	for _, it := range slip.Items {
		if it.UnitPrice == nil {
			continue
		}
		cost, seen := costs[it.ProductID]
		if !seen {
			p, err := uc.products.GetByID(ctx, it.ProductID)
			if err != nil {
				return nil, err
			}
			if p == nil {
				return nil, domain.ErrNotFound
			}
			start, _ := plan.StartStock(it.ProductID)
			if p.Version != start.Version {
				return nil, repository.ErrStaleVersion
			}
			cost = p.Cost
			stock[it.ProductID] = start.Stock
		}
		qty := decimal.NewFromInt(int64(it.Quantity))
		costs[it.ProductID] = domaininv.CostCalculator(decimal.NewFromInt(int64(stock[it.ProductID])), cost, qty, *it.UnitPrice)
		stock[it.ProductID] += it.Quantity
	}
	return costs, nil
}

func slipItems(in []dto.SlipItemRequest) ([]entity.WarehouseSlipItem, error) {
	if len(in) == 0 {
		return nil, fmt.Errorf("%w: el comprobante requiere al menos una línea", domain.ErrValidation)
	}
	items := make([]entity.WarehouseSlipItem, 0, len(in))
	for i, it := range in {
		if it.ProductID == "" {
			return nil, fmt.Errorf("%w: línea %d sin product_id", domain.ErrValidation, i+1)
		}
		if it.Quantity <= 0 {
			return nil, fmt.Errorf("%w: línea %d con cantidad %d", domain.ErrValidation, i+1, it.Quantity)
		}
		if it.UnitPrice != nil && it.UnitPrice.IsNegative() {
			return nil, fmt.Errorf("%w: línea %d con precio negativo", domain.ErrValidation, i+1)
		}
		items = append(items, entity.WarehouseSlipItem{ProductID: it.ProductID, Quantity: it.Quantity, UnitPrice: it.UnitPrice})
	}
	return items, nil
}

func newSlipCode(t entity.SlipType, now time.Time) string {
	prefix := slipPrefixImport
	if t == entity.SlipExport {
		prefix = slipPrefixExport
	}
	return fmt.Sprintf("%s-%s-%s", prefix, now.Format("20060102"), shortCode())
}

func shortCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:4])
}

func slipNote(s *entity.WarehouseSlip) string {
	if s.Type == entity.SlipImport {
		return "Entrada " + s.Code
	}
	return "Salida " + s.Code
}

func unionKeys(a, b map[string]int) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	for k := range a {
		seen[k] = struct{}{}
	}
	for k := range b {
		seen[k] = struct{}{}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
