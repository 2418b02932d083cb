package realtime

import (
	"context"
	"testing"

	"github.com/SumantSagar73/certify/server/storage/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubDeliversByTable(t *testing.T) {
	h := NewHub()
	var got []models.EventType
	cancel := h.Subscribe("certificates", func(e models.ChangeEvent) { got = append(got, e.Type) })
	h.Subscribe("users", func(models.ChangeEvent) { t.Fatal("wrong table") })

	ctx := context.Background()
	require.NoError(t, h.Publish(ctx, models.ChangeEvent{Type: models.EventInsert, Table: "certificates"}))
	require.NoError(t, h.Publish(ctx, models.ChangeEvent{Type: models.EventDelete, Table: "certificates"}))
	assert.Equal(t, []models.EventType{models.EventInsert, models.EventDelete}, got)

	cancel()
	cancel()
	assert.Equal(t, 0, h.Subscribers("certificates"))
	require.NoError(t, h.Publish(ctx, models.ChangeEvent{Type: models.EventUpdate, Table: "certificates"}))
	assert.Len(t, got, 2)
}

func TestHubPublishHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, NewHub().Publish(ctx, models.ChangeEvent{Table: "certificates"}))
}
