package batch

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func floatPtr(v float64) *float64 { return &v }

func TestSummary_EmptyIsNotOK(t *testing.T) {
	s := &Summary{}
	require.False(t, s.OK())
	require.Equal(t, 0, s.SucceededCount())
	require.Equal(t, 0, s.FailedCount())
}

func TestSummary_Aggregates(t *testing.T) {
	s := &Summary{
		Outcomes: []FileOutcome{
			{FileName: "a.pdf", Success: true, OriginalSizeMB: 50, FinalSizeMB: floatPtr(20)},
			{FileName: "b.pdf", Success: true, OriginalSizeMB: 30, FinalSizeMB: floatPtr(15)},
			{FileName: "c.pdf", Success: false, OriginalSizeMB: 90, FinalSizeMB: floatPtr(40)},
			{FileName: "d.pdf", Success: false, OriginalSizeMB: 10, Err: "tool unavailable"},
		},
	}

	require.False(t, s.OK())
	require.Equal(t, 2, s.SucceededCount())
	require.Equal(t, 2, s.FailedCount())
	require.Equal(t, 80.0, s.TotalOriginalMB())
	require.Equal(t, 35.0, s.TotalCompressedMB())
	require.Equal(t, 45.0, s.TotalSavedMB())
}

func TestSummary_AllSucceededIsOK(t *testing.T) {
	s := &Summary{
		Outcomes: []FileOutcome{
			{FileName: "a.pdf", Success: true, OriginalSizeMB: 5, FinalSizeMB: floatPtr(5)},
		},
	}
	require.True(t, s.OK())
}

func TestSummary_Render(t *testing.T) {
	s := &Summary{
		OutputDir: "/tmp/out",
		Outcomes: []FileOutcome{
			{FileName: "a.pdf", Success: true, OriginalSizeMB: 50, FinalSizeMB: floatPtr(20)},
			{FileName: "b.pdf", Success: false, OriginalSizeMB: 90, FinalSizeMB: floatPtr(40)},
			{FileName: "c.pdf", Success: false, OriginalSizeMB: 10, Err: "corrupt document"},
		},
	}

	report := s.Render()
	require.Contains(t, report, "BATCH PROCESSING SUMMARY")
	require.Contains(t, report, "Total files:     3")
	require.Contains(t, report, "Successful:      1")
	require.Contains(t, report, "Failed:          2")
	require.Contains(t, report, "a.pdf")
	require.Contains(t, report, "target not reached, closest: 40.00 MB")
	require.Contains(t, report, "corrupt document")
	require.Contains(t, report, "/tmp/out")
}
