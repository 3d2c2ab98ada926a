package excel_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/jhoicas/spa-ledger-api/internal/domain/entity"
	"github.com/jhoicas/spa-ledger-api/internal/infrastructure/excel"
)

func TestStockTakeSheet(t *testing.T) {
	counted := 95
	session := &entity.StockTakeSession{
		Code:   "KK-20261019-00AF",
		Status: entity.StockTakeOngoing,
		Items: []entity.StockTakeItem{
			{ProductID: "p2", ExpectedQuantity: 7},
			{ProductID: "p1", ExpectedQuantity: 100, ActualQuantity: &counted},
		},
	}
	products := map[string]*entity.Product{
		"p1": {ID: "p1", SKU: "OIL-1", Name: "Aceite de masaje"},
		"p2": {ID: "p2", SKU: "SRM-1", Name: "Sérum facial"},
	}

	data, err := excel.NewStockTakeSheetExporter().StockTakeSheet(session, products)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Conteo")
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, []string{"SKU", "Producto", "Esperado", "Contado", "Diferencia"}, rows[2])
	assert.Equal(t, []string{"OIL-1", "Aceite de masaje", "100", "95", "-5"}, rows[3])
	assert.Equal(t, []string{"SRM-1", "Sérum facial", "7"}, rows[4])
}
