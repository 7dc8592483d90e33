package export

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDataset(rows int) Dataset {
	data := Dataset{
		Title:   "Plan weekly-crews v3",
		Summary: []Field{{Label: "Outcome", Value: "partial"}},
		Headers: []string{"Day", "Time Slot", "Task"},
	}
	for i := 0; i < rows; i++ {
		data.Rows = append(data.Rows, map[string]string{
			"Day":       fmt.Sprintf("d%d", i),
			"Time Slot": "morning",
			"Task":      "paint, hall",
		})
	}
	return data
}

func TestCSVRenderer(t *testing.T) {
	out, err := NewCSVRenderer().Render(sampleDataset(1))
	require.NoError(t, err)
	assert.Equal(t, "Day,Time Slot,Task\nd0,morning,\"paint, hall\"\n", string(out))
}

func TestCSVRendererRequiresHeaders(t *testing.T) {
	_, err := NewCSVRenderer().Render(Dataset{})
	require.Error(t, err)
}

func TestPDFRendererPaginates(t *testing.T) {
	out, err := NewPDFRenderer().Render(sampleDataset(80))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
	assert.Equal(t, "application/pdf", NewPDFRenderer().ContentType())
}
