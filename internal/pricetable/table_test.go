package pricetable

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Veraticus/rxsync/internal/common"
	"github.com/Veraticus/rxsync/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(item, nameDose, cost string, day int) model.InvoiceRecord {
	return model.InvoiceRecord{
		ItemNumber:      item,
		NameDose:        nameDose,
		Cost:            cost,
		Category:        "CARDIO",
		RequisitionDate: time.Date(2015, time.March, day, 9, 0, 0, 0, time.UTC),
	}
}

func TestBuild_MostRecentWins(t *testing.T) {
	table := Build([]model.InvoiceRecord{
		record("11111", "aspirin 81mg", "$0.10", 1),
		record("22222", "atenolol 25mg", "$0.20", 1),
		record("33333", "Aspirin 81MG", "$0.15", 5),
		record("44444", "aspirin 81mg", "$0.12", 3),
	})

	require.Equal(t, 2, table.Len())

	got, ok := table.Get("ASPIRIN 81mg")
	require.True(t, ok)
	assert.Equal(t, "33333", got.ItemNumber)
	assert.Equal(t, "$0.15", got.Cost)
}

func TestBuild_TieKeepsFirst(t *testing.T) {
	table := Build([]model.InvoiceRecord{
		record("11111", "aspirin 81mg", "$0.10", 2),
		record("22222", "aspirin 81mg", "$0.99", 2),
	})

	got, ok := table.Get("aspirin 81mg")
	require.True(t, ok)
	assert.Equal(t, "11111", got.ItemNumber)
}

func TestAdd_ReportsChange(t *testing.T) {
	table := New()
	assert.True(t, table.Add(record("11111", "aspirin 81mg", "$0.10", 2)))
	assert.False(t, table.Add(record("22222", "aspirin 81mg", "$0.10", 1)))
	assert.True(t, table.Add(record("33333", "aspirin 81mg", "$0.10", 3)))
	assert.Equal(t, 1, table.AddAll([]model.InvoiceRecord{
		record("44444", "aspirin 81mg", "$0.10", 3),
		record("55555", "metformin 500mg", "$0.05", 3),
	}))
}

func TestEntries_FirstSeenOrder(t *testing.T) {
	table := Build([]model.InvoiceRecord{
		record("11111", "zinc 50mg", "$0.10", 1),
		record("22222", "aspirin 81mg", "$0.20", 1),
		record("33333", "zinc 50mg", "$0.30", 9),
	})

	entries := table.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "33333", entries[0].ItemNumber)
	assert.Equal(t, "22222", entries[1].ItemNumber)
}

func TestWriteRead_RoundTrip(t *testing.T) {
	table := Build([]model.InvoiceRecord{
		record("11111", "aspirin 81mg", "$0.10", 1),
		record("22222", "atenolol 25mg", "$0.20", 4),
	})

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, table))
	assert.True(t, strings.HasPrefix(buf.String(), "ITEMNUM\tNAMEDOSE\tCOST\tCATEGORY\tREQDATE\n"))

	records, err := Read("table.tsv", &buf)
	require.NoError(t, err)
	assert.Equal(t, table.Entries(), records)
}

func TestWriteTSV_ReadTSV(t *testing.T) {
	table := Build([]model.InvoiceRecord{record("11111", "aspirin 81mg", "$0.10", 1)})
	path := filepath.Join(t.TempDir(), "out", "pricetable.tsv")

	require.NoError(t, WriteTSV(path, table))

	records, err := ReadTSV(path)
	require.NoError(t, err)
	assert.Equal(t, table.Entries(), records)
}

func TestRead_Errors(t *testing.T) {
	_, err := Read("t.tsv", strings.NewReader("ITEMNUM\tNAMEDOSE\n11111\taspirin\n"))
	assert.ErrorIs(t, err, common.ErrParse)

	_, err = Read("t.tsv", strings.NewReader("11111\taspirin\t$1\tX\tyesterday\n"))
	var parseErr *common.ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, "REQDATE", parseErr.Field)
}
