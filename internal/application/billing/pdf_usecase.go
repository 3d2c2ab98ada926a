package billing

import (
	"context"
	"fmt"

	"github.com/jhoicas/spa-ledger-api/internal/domain"
	"github.com/jhoicas/spa-ledger-api/internal/domain/entity"
	"github.com/jhoicas/spa-ledger-api/internal/domain/repository"
)

// PDFUseCase genera el recibo (PDF) de una factura del punto de venta.
type PDFUseCase struct {
	invoiceRepo  repository.InvoiceRepository
	customerRepo repository.CustomerRepository
	productRepo  repository.ProductRepository
	generator    ReceiptPDFGenerator
}

// NewPDFUseCase construye el caso de uso inyectando todas sus dependencias.
func NewPDFUseCase(
	invoiceRepo repository.InvoiceRepository,
	customerRepo repository.CustomerRepository,
	productRepo repository.ProductRepository,
	generator ReceiptPDFGenerator,
) *PDFUseCase {
	return &PDFUseCase{
		invoiceRepo:  invoiceRepo,
		customerRepo: customerRepo,
		productRepo:  productRepo,
		generator:    generator,
	}
}

// DownloadReceiptPDF carga factura, cliente y nombres de producto y genera el PDF.
//
// Retorna:
//   - (pdfBytes, filename, nil)  si todo sale bien.
//   - domain.ErrNotFound         si la factura no existe.
func (uc *PDFUseCase) DownloadReceiptPDF(ctx context.Context, invoiceID string) (pdfBytes []byte, filename string, err error) {
	inv, err := uc.invoiceRepo.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, "", fmt.Errorf("pdf: obtener factura: %w", err)
	}
	if inv == nil {
		return nil, "", domain.ErrNotFound
	}

	customer, err := uc.customerRepo.GetByID(ctx, inv.CustomerID)
	if err != nil {
		return nil, "", fmt.Errorf("pdf: obtener cliente: %w", err)
	}
	if customer == nil {
		customer = &entity.Customer{ID: inv.CustomerID}
	}

	lines := make([]LineForPDF, 0, len(inv.Items))
	for _, it := range inv.Items {
		name := "Servicio " + it.RefID // fallback
		if it.Type == entity.InvoiceItemProduct {
			name = "Producto " + it.RefID
			if product, pErr := uc.productRepo.GetByID(ctx, it.RefID); pErr == nil && product != nil {
				name = product.Name
			}
		}
		lines = append(lines, LineForPDF{InvoiceItem: it, Name: name})
	}

	pdfBytes, err = uc.generator.GenerateReceiptPDF(ctx, inv, customer, lines)
	if err != nil {
		return nil, "", fmt.Errorf("pdf: generación fallida: %w", err)
	}
	return pdfBytes, fmt.Sprintf("recibo_%s.pdf", inv.Code), nil
}
