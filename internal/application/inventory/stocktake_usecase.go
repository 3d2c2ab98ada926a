package inventory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jhoicas/spa-ledger-api/internal/application/dto"
	"github.com/jhoicas/spa-ledger-api/internal/domain"
	"github.com/jhoicas/spa-ledger-api/internal/domain/entity"
	domaininv "github.com/jhoicas/spa-ledger-api/internal/domain/inventory"
	"github.com/jhoicas/spa-ledger-api/internal/domain/repository"
)

const stockTakePrefix = "KK"

// StockTakeUseCase sesiones de inventario físico: snapshot del stock, registro de conteos y
// conciliación al cerrar. Los conteos nunca tocan el stock; solo Complete escribe en el libro.
type StockTakeUseCase struct {
	ledger   *Ledger
	txRunner TxRunner
	repo     repository.StockTakeRepository
	products repository.ProductRepository
	exporter SheetExporter
	log      zerolog.Logger
}

// NewStockTakeUseCase construye el caso de uso. exporter puede ser nil si no se exportan planillas.
func NewStockTakeUseCase(
	ledger *Ledger,
	txRunner TxRunner,
	repo repository.StockTakeRepository,
	products repository.ProductRepository,
	exporter SheetExporter,
	log zerolog.Logger,
) *StockTakeUseCase {
	return &StockTakeUseCase{
		ledger:   ledger,
		txRunner: txRunner,
		repo:     repo,
		products: products,
		exporter: exporter,
		log:      log.With().Str("component", "stock_take").Logger(),
	}
}

// Create abre una sesión con ExpectedQuantity = stock actual de cada producto activo.
func (uc *StockTakeUseCase) Create(ctx context.Context, actorID string, in dto.CreateStockTakeRequest) (*dto.StockTakeResponse, error) {
	products, err := uc.products.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(products, func(i, j int) bool { return products[i].ID < products[j].ID })
	items := make([]entity.StockTakeItem, 0, len(products))
	for _, p := range products {
		items = append(items, entity.StockTakeItem{ProductID: p.ID, ExpectedQuantity: p.Stock})
	}
	now := time.Now().UTC()
	session := &entity.StockTakeSession{
		ID:        uuid.New().String(),
		Code:      fmt.Sprintf("%s-%s-%s", stockTakePrefix, now.Format("20060102"), shortCode()),
		Status:    entity.StockTakeOngoing,
		Notes:     in.Notes,
		Items:     items,
		CreatedBy: actorID,
		CreatedAt: now,
	}
	err = uc.txRunner.Run(ctx, func(repos repository.Repositories) error {
		return repos.StockTakes.Create(ctx, session)
	})
	if err != nil {
		return nil, err
	}
	uc.log.Info().Str("session_id", session.ID).Str("code", session.Code).Int("products", len(items)).Msg("inventario físico abierto")
	return toStockTakeResponse(session), nil
}

// RecordCounts registra (upsert) los conteos mientras la sesión está ongoing. Un producto fuera
// del snapshot se agrega con su stock actual como esperado. La escritura compara la versión de la
// sesión, así no se intercala con Complete.
func (uc *StockTakeUseCase) RecordCounts(ctx context.Context, id string, in dto.RecordCountsRequest) (*dto.StockTakeResponse, error) {
	if len(in.Items) == 0 {
		return nil, fmt.Errorf("%w: sin conteos", domain.ErrValidation)
	}
	for _, it := range in.Items {
		if it.ProductID == "" {
			return nil, fmt.Errorf("%w: product_id requerido", domain.ErrValidation)
		}
		if it.ActualQuantity < 0 {
			return nil, fmt.Errorf("%w: cantidad contada negativa para %s", domain.ErrValidation, it.ProductID)
		}
	}
	var session *entity.StockTakeSession
	err := uc.ledger.Retry(ctx, "record_counts", func() error {
		var err error
		session, err = uc.get(ctx, id)
		if err != nil {
			return err
		}
		if !session.IsOngoing() {
			return fmt.Errorf("%w: la sesión %s está %s", domain.ErrInvalidSessionState, session.Code, session.Status)
		}
		var missing []string
		for _, it := range in.Items {
			if session.Item(it.ProductID) == nil {
				missing = append(missing, it.ProductID)
			}
		}
		if len(missing) > 0 {
			stocks, err := uc.ledger.Stocks(ctx, missing)
			if err != nil {
				return err
			}
			for _, pid := range missing {
				if session.Item(pid) == nil {
					session.Items = append(session.Items, entity.StockTakeItem{ProductID: pid, ExpectedQuantity: stocks[pid].Stock})
				}
			}
		}
		for _, it := range in.Items {
			actual := it.ActualQuantity
			session.Item(it.ProductID).ActualQuantity = &actual
		}
		expected := session.Version
		return uc.txRunner.Run(ctx, func(repos repository.Repositories) error {
			if err := repos.StockTakes.SaveCounts(ctx, session, expected); err != nil {
				return err
			}
			session.Version = expected + 1
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	uc.log.Debug().Str("session_id", id).Int("counts", len(in.Items)).Msg("conteos registrados")
	return toStockTakeResponse(session), nil
}

// Complete cierra la sesión: CAS ongoing -> completed y un asiento inventory_check por cada
// producto contado cuyo delta (actual - stock actual) no sea cero, en la misma transacción.
// El delta usa el stock del momento del cierre, no el snapshot. Un segundo Complete devuelve
// domain.ErrInvalidSessionState sin escribir en el libro.
func (uc *StockTakeUseCase) Complete(ctx context.Context, actorID, id string) (*dto.CompleteStockTakeResponse, error) {
	var session *entity.StockTakeSession
	var written []*entity.StockAdjustment
	err := uc.ledger.Retry(ctx, "complete_stock_take", func() error {
		var err error
		session, err = uc.get(ctx, id)
		if err != nil {
			return err
		}
		if !session.IsOngoing() {
			return fmt.Errorf("%w: la sesión %s ya está %s", domain.ErrInvalidSessionState, session.Code, session.Status)
		}
		var counted []string
		for _, it := range session.Items {
			if it.ActualQuantity != nil {
				counted = append(counted, it.ProductID)
			}
		}
		plan := &BatchPlan{}
		if len(counted) > 0 {
			stocks, err := uc.ledger.Stocks(ctx, counted)
			if err != nil {
				return err
			}
			meta := domaininv.Meta{Notes: "Inventario físico " + session.Code, ActorID: actorID, ReferenceID: session.ID}
			var reqs []domaininv.AdjustmentRequest
			for _, it := range session.Items {
				if it.ActualQuantity == nil {
					continue
				}
				req, ok, err := uc.ledger.Factory().InventoryCheck(it.ProductID, *it.ActualQuantity, stocks[it.ProductID].Stock, meta)
				if err != nil {
					return err
				}
				if ok {
					reqs = append(reqs, req)
				}
			}
			if plan, err = uc.ledger.Plan(stocks, reqs); err != nil {
				return err
			}
		}
		now := time.Now().UTC()
		expected := session.Version
		session.Status = entity.StockTakeCompleted
		session.CompletedAt = &now
		session.CompletedBy = actorID
		return uc.txRunner.Run(ctx, func(repos repository.Repositories) error {
			if err := repos.StockTakes.MarkCompleted(ctx, session, expected); err != nil {
				return err
			}
			written, err = plan.Write(ctx, repos)
			if err != nil {
				return err
			}
			session.Version = expected + 1
			return nil
		})
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidSessionState) {
			uc.log.Warn().Str("session_id", id).Msg("cierre de inventario rechazado")
		}
		return nil, err
	}
	uc.ledger.observe(written)
	uc.log.Info().Str("session_id", session.ID).Int("adjustments", len(written)).Msg("inventario físico cerrado")
	return &dto.CompleteStockTakeResponse{
		Session:     *toStockTakeResponse(session),
		Adjustments: ToAdjustmentResponses(written),
	}, nil
}

// Get obtiene una sesión por ID.
func (uc *StockTakeUseCase) Get(ctx context.Context, id string) (*dto.StockTakeResponse, error) {
	session, err := uc.get(ctx, id)
	if err != nil {
		return nil, err
	}
	return toStockTakeResponse(session), nil
}

// List lista sesiones, opcionalmente por estado.
func (uc *StockTakeUseCase) List(ctx context.Context, in dto.StockTakeListRequest) ([]dto.StockTakeResponse, error) {
	in.DefaultPage()
	list, err := uc.repo.List(ctx, strings.ToLower(in.Status), in.Limit, in.Offset)
	if err != nil {
		return nil, err
	}
	out := make([]dto.StockTakeResponse, 0, len(list))
	for _, s := range list {
		out = append(out, *toStockTakeResponse(s))
	}
	return out, nil
}

// ExportSheet genera la planilla xlsx de conteo de la sesión.
func (uc *StockTakeUseCase) ExportSheet(ctx context.Context, id string) (string, []byte, error) {
	if uc.exporter == nil {
		return "", nil, fmt.Errorf("exportador de planillas no configurado")
	}
	session, err := uc.get(ctx, id)
	if err != nil {
		return "", nil, err
	}
	products, err := uc.products.ListActive(ctx)
	if err != nil {
		return "", nil, err
	}
	byID := make(map[string]*entity.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	for _, it := range session.Items {
		if _, ok := byID[it.ProductID]; ok {
			continue
		}
		p, err := uc.products.GetByID(ctx, it.ProductID)
		if err != nil {
			return "", nil, err
		}
		if p != nil {
			byID[p.ID] = p
		}
	}
	data, err := uc.exporter.StockTakeSheet(session, byID)
	if err != nil {
		return "", nil, err
	}
	return session.Code + ".xlsx", data, nil
}

func (uc *StockTakeUseCase) get(ctx context.Context, id string) (*entity.StockTakeSession, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: id requerido", domain.ErrValidation)
	}
	session, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, domain.ErrNotFound
	}
	return session, nil
}
