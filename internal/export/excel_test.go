package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/imsoft/Holistia-sub011/internal/model"
)

func TestAvailabilityReport(t *testing.T) {
	days := model.DaySlotMap{
		"2024-01-02": {
			{Date: "2024-01-02", StartTime: "09:00", EndTime: "09:30", Status: model.SlotAvailable},
			{Date: "2024-01-02", StartTime: "09:30", EndTime: "10:00", Status: model.SlotBlocked, Reason: "manual_block"},
		},
		"2024-01-01": {
			{Date: "2024-01-01", StartTime: "09:00", EndTime: "09:30", Status: model.SlotOccupied},
		},
		"2024-01-03": nil,
	}

	var buf bytes.Buffer
	require.NoError(t, AvailabilityReport(&buf, "pro-1", days))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Availability")
	require.NoError(t, err)
	require.Len(t, rows, 5)

	require.Equal(t, []string{"Professional", "Date", "Start", "End", "Status", "Reason"}, rows[0])

	// Dates come out ascending regardless of map order.
	require.Equal(t, "2024-01-01", rows[1][1])
	require.Equal(t, "occupied", rows[1][4])
	require.Equal(t, "2024-01-02", rows[2][1])
	require.Equal(t, "manual_block", rows[3][5])
	require.Equal(t, "no schedule", rows[4][4])
}

func TestExcelWriterRequiresSheet(t *testing.T) {
	w := NewExcelWriter()
	defer w.Close()

	require.Error(t, w.WriteHeader([]string{"a"}))
	require.Error(t, w.WriteRow([]interface{}{"a"}))
}
