package consumer

import (
	"context"
	"errors"
	"testing"

	"smart-industry/internal/config"
	"smart-industry/internal/domain"
	"smart-industry/internal/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockProcessor struct {
	mock.Mock
}

func (m *mockProcessor) Process(ctx context.Context, raw map[string]any) (*domain.RiskVerdict, error) {
	args := m.Called(ctx, raw)
	v, _ := args.Get(0).(*domain.RiskVerdict)
	return v, args.Error(1)
}

func newTestConsumer(p Processor) *MQTTConsumer {
	cfg := &config.Config{}
	cfg.Ingest.SensorTopic = "sensors/+/data"
	return NewMQTTConsumer(cfg, nil, p, nil, zap.NewNop())
}

func TestHandleMessage_DeviceFromTopic(t *testing.T) {
	p := &mockProcessor{}
	p.On("Process", mock.Anything, mock.MatchedBy(func(raw map[string]any) bool {
		return raw["device_id"] == "dev-7" && raw["pm2_5"] == 12.0
	})).Return(testVerdict("dev-7", domain.FinalSafe), nil).Once()

	c := newTestConsumer(p)
	err := c.handleMessage("sensors/dev-7/data", []byte(`{"pm2_5": 12}`))

	require.NoError(t, err)
	p.AssertExpectations(t)
}

func TestHandleMessage_PayloadDeviceWins(t *testing.T) {
	p := &mockProcessor{}
	p.On("Process", mock.Anything, mock.MatchedBy(func(raw map[string]any) bool {
		return raw["device_id"] == "dev-payload"
	})).Return(testVerdict("w1", domain.FinalSafe), nil).Once()

	c := newTestConsumer(p)
	require.NoError(t, c.handleMessage("sensors/dev-topic/data", []byte(`{"device_id":"dev-payload"}`)))
	p.AssertExpectations(t)
}

func TestHandleMessage_MalformedPayload(t *testing.T) {
	p := &mockProcessor{}
	c := newTestConsumer(p)

	err := c.handleMessage("sensors/dev-7/data", []byte(`not json`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to unmarshal message")
	p.AssertNotCalled(t, "Process", mock.Anything, mock.Anything)
}

func TestHandleMessage_NullPayload(t *testing.T) {
	p := &mockProcessor{}
	cfg := &config.Config{}
	cfg.Ingest.SensorTopic = "sensors/+/data"
	m := metrics.New()
	c := NewMQTTConsumer(cfg, nil, p, m, zap.NewNop())

	var err error
	require.NotPanics(t, func() {
		err = c.handleMessage("sensors/dev-7/data", []byte(`null`))
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, float64(1), rejectedCount(t, m, "malformed"))
	p.AssertNotCalled(t, "Process", mock.Anything, mock.Anything)
}

func rejectedCount(t *testing.T, m *metrics.Metrics, reason string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != "smart_industry_samples_rejected_total" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			for _, lp := range metric.GetLabel() {
				if lp.GetName() == "reason" && lp.GetValue() == reason {
					return metric.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestHandleMessage_ProcessError(t *testing.T) {
	p := &mockProcessor{}
	p.On("Process", mock.Anything, mock.Anything).
		Return(nil, domain.NewMissingFieldError("co")).Once()

	c := newTestConsumer(p)
	err := c.handleMessage("sensors/dev-7/data", []byte(`{}`))

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrValidation))
}

func TestDeviceFromTopic(t *testing.T) {
	assert.Equal(t, "dev-1", deviceFromTopic("sensors/dev-1/data"))
	assert.Equal(t, "", deviceFromTopic("sensors"))
	assert.Equal(t, "", deviceFromTopic("sensors/ /data"))
}
