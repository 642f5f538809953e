package route

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"fieldforce/internal/types"
)

type recordingPusher struct {
	mu      sync.Mutex
	visits  []types.ID
	samples []Sample
	err     error
}

func (p *recordingPusher) Push(_ context.Context, visitID types.ID, s Sample) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.visits = append(p.visits, visitID)
	p.samples = append(p.samples, s)
	return nil
}

func TestVisitIDFromTopic(t *testing.T) {
	const pattern = "fieldforce/visits/+/samples"
	tests := []struct {
		topic  string
		want   types.ID
		wantOK bool
	}{
		{"fieldforce/visits/abc-123/samples", "abc-123", true},
		{"fieldforce/visits//samples", "", false},
		{"fieldforce/visits/abc/other", "", false},
		{"fieldforce/visits/abc/samples/extra", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			got, ok := visitIDFromTopic(pattern, tt.topic)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMQTTSource_ProcessDecodesSample(t *testing.T) {
	pusher := &recordingPusher{}
	src := &MQTTSource{topic: "fieldforce/visits/+/samples", pusher: pusher, logger: zap.NewNop()}

	err := src.process("fieldforce/visits/v-9/samples", []byte(`{"lat":30.05,"lng":31.23,"recorded_at":"2024-03-04T09:30:00Z"}`))
	require.NoError(t, err)

	require.Len(t, pusher.samples, 1)
	assert.Equal(t, types.ID("v-9"), pusher.visits[0])
	assert.Equal(t, types.Point{Lat: 30.05, Lng: 31.23}, pusher.samples[0].Position)
	assert.True(t, pusher.samples[0].RecordedAt.Equal(time.Date(2024, 3, 4, 9, 30, 0, 0, time.UTC)))
}

func TestMQTTSource_ProcessRejectsBadInput(t *testing.T) {
	pusher := &recordingPusher{}
	src := &MQTTSource{topic: "fieldforce/visits/+/samples", pusher: pusher, logger: zap.NewNop()}

	assert.Error(t, src.process("other/topic", []byte(`{}`)))
	assert.Error(t, src.process("fieldforce/visits/v-9/samples", []byte(`not json`)))
	assert.Empty(t, pusher.samples)

	pusher.err = ErrNotTracking
	assert.ErrorIs(t, src.process("fieldforce/visits/v-9/samples", []byte(`{"lat":1,"lng":2}`)), ErrNotTracking)
}

func TestNewMQTTSource_RequiresSingleWildcard(t *testing.T) {
	_, err := NewMQTTSource(nil, "fieldforce/visits/samples", nil, nil)
	assert.Error(t, err)
	_, err = NewMQTTSource(nil, "fieldforce/+/+/samples", nil, nil)
	assert.Error(t, err)
}
