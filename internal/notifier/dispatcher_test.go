package notifier

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"smart-industry/internal/domain"
	"smart-industry/internal/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type sentMail struct {
	to, subject, body string
}

type fakeEmail struct {
	mu    sync.Mutex
	sent  []sentMail
	err   error
	panic bool
}

func (f *fakeEmail) SendEmail(ctx context.Context, to, subject, body string) error {
	if f.panic {
		panic("smtp exploded")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMail{to: to, subject: subject, body: body})
	return nil
}

func (f *fakeEmail) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type fakeSMS struct {
	mu    sync.Mutex
	sent  []string
	err   error
	block bool
}

func (f *fakeSMS) SendSMS(ctx context.Context, to, body string) error {
	if f.block {
		<-ctx.Done()
		return ctx.Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, to+"|"+body)
	return nil
}

func (f *fakeSMS) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func unsafeVerdict() *domain.RiskVerdict {
	return &domain.RiskVerdict{
		WorkerID:   "worker-9",
		WorkerName: "Ana",
		ModelLabel: domain.RiskHigh,
		FuzzyLabel: domain.RiskHigh,
		Final:      domain.FinalUnsafe,
		Flags: []domain.ExceedanceFlag{
			{Metric: domain.FlagPM25, Value: 60, Limit: 35},
		},
		Measures: "Wear an N95 mask and avoid dusty areas.",
		Sample: &domain.SensorSample{
			Timestamp: time.Date(2025, 3, 1, 10, 30, 0, 0, time.UTC),
		},
	}
}

func testProfile() *domain.WorkerProfile {
	return &domain.WorkerProfile{
		WorkerID:    "worker-9",
		Name:        "Ana",
		Email:       "ana@example.com",
		PhoneNumber: "+15550001111",
	}
}

func counterValue(t *testing.T, m *metrics.Metrics, channel, status string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != "smart_industry_notifications_total" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			labels := map[string]string{}
			for _, lp := range metric.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			if labels["channel"] == channel && labels["status"] == status {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func TestNotify_SendsBothChannels(t *testing.T) {
	email := &fakeEmail{}
	sms := &fakeSMS{}
	m := metrics.New()
	d := NewDispatcher(email, sms, time.Second, m, zap.NewNop())

	d.Notify(unsafeVerdict(), testProfile())
	d.Wait()

	require.Equal(t, 1, email.count())
	assert.Equal(t, "ana@example.com", email.sent[0].to)
	assert.Equal(t, "⚠️ Safety Alert for worker-9", email.sent[0].subject)
	assert.Contains(t, email.sent[0].body, "Dear Ana,")

	require.Equal(t, 1, sms.count())
	assert.Equal(t, "+15550001111|⚠️ Safety Alert for worker-9", sms.sent[0])

	assert.Equal(t, float64(1), counterValue(t, m, ChannelEmail, "sent"))
	assert.Equal(t, float64(1), counterValue(t, m, ChannelSMS, "sent"))
}

func TestNotify_SafeVerdictIsNoop(t *testing.T) {
	email := &fakeEmail{}
	sms := &fakeSMS{}
	d := NewDispatcher(email, sms, time.Second, nil, zap.NewNop())

	v := unsafeVerdict()
	v.Final = domain.FinalSafe
	d.Notify(v, testProfile())
	d.Wait()

	assert.Zero(t, email.count())
	assert.Zero(t, sms.count())
}

func TestNotify_SkipsMissingAddress(t *testing.T) {
	email := &fakeEmail{}
	sms := &fakeSMS{}
	m := metrics.New()
	d := NewDispatcher(email, sms, time.Second, m, zap.NewNop())

	profile := testProfile()
	profile.Email = "  "
	d.Notify(unsafeVerdict(), profile)
	d.Wait()

	assert.Zero(t, email.count())
	assert.Equal(t, 1, sms.count())
	assert.Equal(t, float64(1), counterValue(t, m, ChannelEmail, "skipped"))
}

func TestNotify_UnconfiguredChannel(t *testing.T) {
	sms := &fakeSMS{}
	m := metrics.New()
	d := NewDispatcher(nil, sms, time.Second, m, zap.NewNop())

	d.Notify(unsafeVerdict(), testProfile())
	d.Wait()

	assert.Equal(t, 1, sms.count())
	assert.Equal(t, float64(1), counterValue(t, m, ChannelEmail, "skipped"))
}

func TestNotify_FailureIsIsolated(t *testing.T) {
	email := &fakeEmail{err: errors.New("535 authentication failed")}
	sms := &fakeSMS{}
	m := metrics.New()
	d := NewDispatcher(email, sms, time.Second, m, zap.NewNop())

	d.Notify(unsafeVerdict(), testProfile())
	d.Wait()

	assert.Equal(t, 1, sms.count())
	assert.Equal(t, float64(1), counterValue(t, m, ChannelEmail, "failed"))
	assert.Equal(t, float64(1), counterValue(t, m, ChannelSMS, "sent"))
}

func TestNotify_PanicAndTimeoutAreContained(t *testing.T) {
	email := &fakeEmail{panic: true}
	sms := &fakeSMS{block: true}
	m := metrics.New()
	d := NewDispatcher(email, sms, 50*time.Millisecond, m, zap.NewNop())

	d.Notify(unsafeVerdict(), testProfile())
	d.Wait()

	assert.Equal(t, float64(1), counterValue(t, m, ChannelEmail, "failed"))
	assert.Equal(t, float64(1), counterValue(t, m, ChannelSMS, "failed"))
}

func TestNotify_NilInputs(t *testing.T) {
	d := NewDispatcher(&fakeEmail{}, &fakeSMS{}, 0, nil, zap.NewNop())
	assert.Equal(t, DefaultTimeout, d.timeout)

	d.Notify(nil, testProfile())
	d.Notify(unsafeVerdict(), nil)
	d.Wait()
}
