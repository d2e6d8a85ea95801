package fetch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seller-report-lab/internal/domain"
)

func TestParseSalesRows(t *testing.T) {
	t.Run("salesBySku variant", func(t *testing.T) {
		content := []byte(`{"salesAndTrafficByAsin":[
			{"childAsin":"B001","sku":"SKU-1","salesBySku":{"unitsOrdered":4}},
			{"childAsin":"B002","sku":"SKU-2","salesBySku":{"unitsOrdered":1}}
		]}`)
		rows, err := ParseSalesRows(content)
		require.NoError(t, err)
		assert.Equal(t, []domain.SalesRow{
			{ChildASIN: "B001", MarketplaceSKU: "SKU-1", Units: 4},
			{ChildASIN: "B002", MarketplaceSKU: "SKU-2", Units: 1},
		}, rows)
	})

	t.Run("salesByAsin variant", func(t *testing.T) {
		content := []byte(`{"salesAndTrafficByAsin":[
			{"childAsin":"B001","sku":"SKU-1","salesByAsin":{"unitsOrdered":7}}
		]}`)
		rows, err := ParseSalesRows(content)
		require.NoError(t, err)
		assert.Equal(t, 7.0, rows[0].Units)
	})

	t.Run("flat unitsOrdered fallback", func(t *testing.T) {
		content := []byte(`{"salesAndTrafficByAsin":[
			{"childAsin":"B001","sku":"SKU-1","unitsOrdered":3}
		]}`)
		rows, err := ParseSalesRows(content)
		require.NoError(t, err)
		assert.Equal(t, 3.0, rows[0].Units)
	})

	t.Run("variant priority prefers salesBySku", func(t *testing.T) {
		content := []byte(`{"salesAndTrafficByAsin":[
			{"childAsin":"B001","sku":"SKU-1",
			 "salesBySku":{"unitsOrdered":2},
			 "salesByAsin":{"unitsOrdered":9},
			 "unitsOrdered":100}
		]}`)
		rows, err := ParseSalesRows(content)
		require.NoError(t, err)
		assert.Equal(t, 2.0, rows[0].Units)
	})

	t.Run("no recognizable units counts zero", func(t *testing.T) {
		content := []byte(`{"salesAndTrafficByAsin":[
			{"childAsin":"B001","sku":"SKU-1","trafficByAsin":{"sessions":10}}
		]}`)
		rows, err := ParseSalesRows(content)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, 0.0, rows[0].Units)
	})

	t.Run("rows missing identifiers are skipped", func(t *testing.T) {
		content := []byte(`{"salesAndTrafficByAsin":[
			{"childAsin":"B001","sku":"","salesBySku":{"unitsOrdered":4}},
			{"childAsin":"","sku":"SKU-2","salesBySku":{"unitsOrdered":1}},
			{"childAsin":"  ","sku":"SKU-3","salesBySku":{"unitsOrdered":1}},
			{"childAsin":"B004","sku":"SKU-4","salesBySku":{"unitsOrdered":5}}
		]}`)
		rows, err := ParseSalesRows(content)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "B004", rows[0].ChildASIN)
	})

	t.Run("duplicate pairs summed", func(t *testing.T) {
		content := []byte(`{"salesAndTrafficByAsin":[
			{"childAsin":"B001","sku":"SKU-1","salesBySku":{"unitsOrdered":4}},
			{"childAsin":"B001","sku":"SKU-1","salesBySku":{"unitsOrdered":2}}
		]}`)
		rows, err := ParseSalesRows(content)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, 6.0, rows[0].Units)
	})

	t.Run("empty container yields no rows", func(t *testing.T) {
		rows, err := ParseSalesRows([]byte(`{"salesAndTrafficByAsin":[]}`))
		require.NoError(t, err)
		assert.Empty(t, rows)
	})

	t.Run("surrounding whitespace tolerated", func(t *testing.T) {
		rows, err := ParseSalesRows([]byte("\n  {\"salesAndTrafficByAsin\":[]}  \n"))
		require.NoError(t, err)
		assert.Empty(t, rows)
	})
}

func TestParseSalesRowsSchemaError(t *testing.T) {
	t.Run("missing container", func(t *testing.T) {
		_, err := ParseSalesRows([]byte(`{"reportSpecification":{},"salesAndTrafficByDate":[]}`))
		var schemaErr *SchemaError
		require.ErrorAs(t, err, &schemaErr)
		assert.Equal(t, "salesAndTrafficByAsin", schemaErr.Container)
		assert.Equal(t, []string{"reportSpecification", "salesAndTrafficByDate"}, schemaErr.TopKeys)
		assert.ErrorIs(t, err, ErrNonRetryable)
	})

	t.Run("container wrong type", func(t *testing.T) {
		_, err := ParseSalesRows([]byte(`{"salesAndTrafficByAsin":{"not":"a list"}}`))
		var schemaErr *SchemaError
		require.ErrorAs(t, err, &schemaErr)
	})
}

func TestParseSalesRowsDecodeError(t *testing.T) {
	_, err := ParseSalesRows([]byte(`not json at all`))
	var decodeErr *DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.Equal(t, "json", decodeErr.Stage)
	assert.Contains(t, decodeErr.Preview, "not json")
}
