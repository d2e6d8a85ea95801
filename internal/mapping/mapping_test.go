package mapping

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seller-report-lab/internal/domain"
)

func writeSnapshot(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mapping.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestCSVSourceLoad(t *testing.T) {
	ctx := context.Background()

	t.Run("standard header", func(t *testing.T) {
		src := &CSVSource{Path: writeSnapshot(t, "ASIN,SKU\nB001,WIDGET\nB002,GADGET\n")}
		entries, err := src.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, []domain.MappingEntry{
			{ChildASIN: "B001", CanonicalSKU: "WIDGET"},
			{ChildASIN: "B002", CanonicalSKU: "GADGET"},
		}, entries)
	})

	t.Run("alternate headers and extra columns", func(t *testing.T) {
		src := &CSVSource{Path: writeSnapshot(t,
			"Title,Child ASIN,Merchant SKU,Notes\nWidget,B001,WIDGET,fast mover\n")}
		entries, err := src.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, []domain.MappingEntry{{ChildASIN: "B001", CanonicalSKU: "WIDGET"}}, entries)
	})

	t.Run("blank cells skipped", func(t *testing.T) {
		src := &CSVSource{Path: writeSnapshot(t, "asin,sku\nB001,WIDGET\n,ORPHAN\nB002,\n  ,  \n")}
		entries, err := src.Load(ctx)
		require.NoError(t, err)
		require.Len(t, entries, 1)
	})

	t.Run("short rows tolerated", func(t *testing.T) {
		src := &CSVSource{Path: writeSnapshot(t, "notes,asin,sku\nx,B001,WIDGET\nshort\n")}
		entries, err := src.Load(ctx)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "B001", entries[0].ChildASIN)
	})

	t.Run("missing asin column", func(t *testing.T) {
		src := &CSVSource{Path: writeSnapshot(t, "id,sku\nB001,WIDGET\n")}
		_, err := src.Load(ctx)
		assert.ErrorContains(t, err, "no ASIN column")
	})

	t.Run("missing sku column", func(t *testing.T) {
		src := &CSVSource{Path: writeSnapshot(t, "asin,product\nB001,WIDGET\n")}
		_, err := src.Load(ctx)
		assert.ErrorContains(t, err, "no SKU column")
	})

	t.Run("empty file", func(t *testing.T) {
		src := &CSVSource{Path: writeSnapshot(t, "")}
		_, err := src.Load(ctx)
		assert.ErrorContains(t, err, "empty file")
	})

	t.Run("missing file", func(t *testing.T) {
		src := &CSVSource{Path: filepath.Join(t.TempDir(), "nope.csv")}
		_, err := src.Load(ctx)
		assert.Error(t, err)
	})
}

func TestStaticSource(t *testing.T) {
	src := &StaticSource{Entries: []domain.MappingEntry{{ChildASIN: "B001", CanonicalSKU: "WIDGET"}}}
	entries, err := src.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
