package csvtable

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"etf-flow-lab/internal/domain"
	"etf-flow-lab/internal/storage"
)

func TestEncode_HeaderAndRows(t *testing.T) {
	table := &domain.Table{
		Series: []string{"USO", "BNO"},
		Rows: []domain.Row{
			{Date: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Values: domain.Snapshot{"USO": domain.Number(100), "BNO": domain.Unavailable()}},
			{Date: time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), Values: domain.Snapshot{"USO": domain.Number(101.5), "BNO": domain.Number(50)}},
		},
	}

	b, err := Marshal(table)
	require.NoError(t, err)

	want := "Date,USO,BNO\n2024-01-02,100,N/A\n2024-01-03,101.5,50\n"
	assert.Equal(t, want, string(b))
}

func TestDecode_RoundTripKeepsOrderAndSentinels(t *testing.T) {
	in := "Date,USO,BNO,SCO\n2024-01-03,100,,N/A\n2024-01-02,\"1,200\",5,7\n"

	table, err := Unmarshal([]byte(in))
	require.NoError(t, err)

	assert.Equal(t, []string{"USO", "BNO", "SCO"}, table.Series)
	require.Len(t, table.Rows, 2)
	// Physical order is preserved; sorting is the reconciler's job.
	assert.Equal(t, "2024-01-03", table.Rows[0].Date.Format(domain.DateLayout))
	assert.False(t, table.Rows[0].Value("BNO").Available())
	assert.False(t, table.Rows[0].Value("SCO").Available())
	assert.Equal(t, "1200", table.Rows[1].Value("USO").String())

	out, err := Marshal(table)
	require.NoError(t, err)
	assert.Equal(t, "Date,USO,BNO,SCO\n2024-01-03,100,N/A,N/A\n2024-01-02,1200,5,7\n", string(out))
}

func TestDecode_AcceptedDateLayouts(t *testing.T) {
	in := "Date,Travel Number\n2024-01-02,1\n2024-01-03 00:00:00,2\n2024-01-04T00:00:00Z,3\n01/05/2024,4\n"

	table, err := Unmarshal([]byte(in))
	require.NoError(t, err)
	require.Len(t, table.Rows, 4)

	for i, want := range []string{"2024-01-02", "2024-01-03", "2024-01-04", "2024-01-05"} {
		assert.Equal(t, want, table.Rows[i].Date.Format(domain.DateLayout))
	}
}

func TestDecode_HeaderOnly(t *testing.T) {
	table, err := Unmarshal([]byte("Date,USO,BNO\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"USO", "BNO"}, table.Series)
	assert.Empty(t, table.Rows)
}

func TestDecode_ByteOrderMark(t *testing.T) {
	table, err := Unmarshal([]byte("\ufeffDate,USO\n2024-01-02,1\n"))
	require.NoError(t, err)
	assert.Len(t, table.Rows, 1)
}

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"empty object", ""},
		{"no date column", "USO,BNO\n1,2\n"},
		{"date not first", "USO,Date\n1,2024-01-02\n"},
		{"duplicate header", "Date,USO,USO\n2024-01-02,1,2\n"},
		{"empty header", "Date,,BNO\n2024-01-02,1,2\n"},
		{"ragged row", "Date,USO,BNO\n2024-01-02,1\n"},
		{"bad date", "Date,USO\nyesterday,1\n"},
		{"non-numeric cell", "Date,USO\n2024-01-02,lots\n"},
		{"out of range cell", "Date,USO\n2024-01-02,1e400\n"},
		{"bare quote", "Date,USO\n2024-01-02,\"1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.in))
			if !errors.Is(err, storage.ErrMalformedTable) {
				t.Errorf("expected ErrMalformedTable, got %v", err)
			}
		})
	}
}

func TestEncode_NilTable(t *testing.T) {
	_, err := Marshal(nil)
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}
