package pipeline

import (
	"context"
	"net/http"
	"testing"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// counterValue reads the current value of a prometheus counter.
func counterValue(t *testing.T, c interface {
	Write(*dto.Metric) error
}) float64 {
	t.Helper()

	m := &dto.Metric{}
	require.NoError(t, c.Write(m))
	return m.GetCounter().GetValue()
}

func TestExecutorMetrics_Singleton(t *testing.T) {
	t.Parallel()

	assert.Same(t, GetExecutorMetrics(), GetExecutorMetrics())
}

func TestExecutorMetrics_PanicRecoveredCounted(t *testing.T) {
	before := counterValue(t, GetExecutorMetrics().panicsRecovered)

	e := NewExecutor()
	e.Execute(context.Background(), NewRequest(http.MethodGet, "/x"), func(ctx context.Context, req *Request) *Response {
		panic("count me")
	})

	after := counterValue(t, GetExecutorMetrics().panicsRecovered)
	assert.Equal(t, before+1, after)
}

func TestExecutorMetrics_ShortCircuitCounted(t *testing.T) {
	c := GetExecutorMetrics().shortCircuits.WithLabelValues("metrics-blocker")
	before := counterValue(t, c)

	e := NewExecutor()
	e.AddPre(NewPre("metrics-blocker", "/", func(ctx context.Context, req *Request) (Verdict, error) {
		return ShortCircuit(JSONResponse(http.StatusForbidden, `{"error":"forbidden"}`)), nil
	}))
	e.Execute(context.Background(), NewRequest(http.MethodGet, "/x"), okHandler(""))

	assert.Equal(t, before+1, counterValue(t, c))
}
