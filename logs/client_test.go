package logs

import (
	"net/http"
	"testing"

	"github.com/botceptor/botceptor/internal/bottest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientFetch(t *testing.T) {
	t.Run("Returns records in turn order", func(t *testing.T) {
		svc := bottest.NewService("", nil)
		defer svc.Close()

		svc.SetRecords("s-1", []string{
			"{'dialog_state': ['greeting']}",
			"{'dialog_state': ['booking']} {'name': 'reserve_table'}",
		})

		records, err := NewClient(svc.Host()).Fetch("s-1")
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Contains(t, records[1], "reserve_table")
	})

	t.Run("Unknown session yields an empty history", func(t *testing.T) {
		svc := bottest.NewService("", nil)
		defer svc.Close()

		records, err := NewClient(svc.Host()).Fetch("never-started")
		require.NoError(t, err)
		assert.Empty(t, records)
	})

	t.Run("Non-200 status is an error", func(t *testing.T) {
		svc := bottest.NewService("", nil)
		defer svc.Close()
		svc.LogStatus = http.StatusInternalServerError

		_, err := NewClient(svc.Host()).Fetch("s-1")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "status 500")
	})

	t.Run("Unreachable host is an error", func(t *testing.T) {
		_, err := NewClient("127.0.0.1:1").Fetch("s-1")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to fetch session logs")
	})
}
