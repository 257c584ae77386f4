package metrics

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/BaSui01/tailorflow/workflow"
)

var collectorNamespaceSeq uint64

func nextTestNamespace() string {
	seq := atomic.AddUint64(&collectorNamespaceSeq, 1)
	return fmt.Sprintf("test_%d", seq)
}

// =============================================================================
// 🧪 Collector 测试
// =============================================================================

func TestNewCollector(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	assert.NotNil(t, collector)
	assert.NotNil(t, collector.httpRequestsTotal)
	assert.NotNil(t, collector.phaseExecutionsTotal)
	assert.NotNil(t, collector.routesTotal)
	assert.NotNil(t, collector.runsTotal)
}

func TestCollector_RecordHTTPRequest(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordHTTPRequest("POST", "/api/v1/tailor", 200, 100*time.Millisecond, 1024, 2048)
	collector.RecordHTTPRequest("POST", "/api/v1/tailor", 201, 50*time.Millisecond, 512, 1024)
	collector.RecordHTTPRequest("POST", "/api/v1/tailor", 422, 5*time.Millisecond, 10, 100)

	assert.Equal(t, 2, testutil.CollectAndCount(collector.httpRequestsTotal))
	assert.Equal(t, float64(2),
		testutil.ToFloat64(collector.httpRequestsTotal.WithLabelValues("POST", "/api/v1/tailor", "2xx")))
}

func TestCollector_WorkflowObserver(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	var obs workflow.Observer = collector
	obs.PhaseCompleted("resume-tailoring", "validation", workflow.NodePhase, workflow.OutcomeNext, 10*time.Millisecond)
	obs.PhaseCompleted("resume-tailoring", "validation", workflow.NodePhase, workflow.OutcomeError, 10*time.Millisecond)
	obs.Routed("resume-tailoring", "compliance", "generation")
	obs.RunCompleted("resume-tailoring", workflow.ExecutionStatusCompleted, time.Second)

	assert.Equal(t, 2, testutil.CollectAndCount(collector.phaseExecutionsTotal))
	assert.Equal(t, float64(1),
		testutil.ToFloat64(collector.routesTotal.WithLabelValues("resume-tailoring", "compliance", "generation")))
	assert.Equal(t, float64(1),
		testutil.ToFloat64(collector.runsTotal.WithLabelValues("resume-tailoring", string(workflow.ExecutionStatusCompleted))))
}

func TestCollector_RunsTotalExposition(t *testing.T) {
	ns := nextTestNamespace()
	collector := NewCollector(ns, zap.NewNop())

	collector.RunCompleted("g", workflow.ExecutionStatusFailed, time.Millisecond)

	expected := fmt.Sprintf(`
# HELP %[1]s_workflow_runs_total Total number of workflow runs
# TYPE %[1]s_workflow_runs_total counter
%[1]s_workflow_runs_total{graph="g",status="failed"} 1
`, ns)
	assert.NoError(t, testutil.CollectAndCompare(collector.runsTotal, strings.NewReader(expected)))
}

func TestCollector_RecordCacheOperation(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordCacheHit("resume_analysis")
	collector.RecordCacheMiss("resume_analysis")
	collector.RecordCacheMiss("resume_analysis")

	assert.Equal(t, float64(1), testutil.ToFloat64(collector.cacheHits.WithLabelValues("resume_analysis")))
	assert.Equal(t, float64(2), testutil.ToFloat64(collector.cacheMisses.WithLabelValues("resume_analysis")))
}

func TestCollector_RecordDatabaseQuery(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordDBQuery("sqlite", "insert", 20*time.Millisecond)
	collector.RecordDBConnections("sqlite", 4, 2)

	assert.Greater(t, testutil.CollectAndCount(collector.dbQueryDuration), 0)
	assert.Equal(t, float64(4), testutil.ToFloat64(collector.dbConnectionsOpen.WithLabelValues("sqlite")))
	assert.Equal(t, float64(2), testutil.ToFloat64(collector.dbConnectionsIdle.WithLabelValues("sqlite")))
}

func TestCollector_ConcurrentRecording(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			collector.RecordHTTPRequest("GET", "/health", 200, time.Millisecond, 0, 64)
			collector.PhaseCompleted("g", "p", workflow.NodePhase, workflow.OutcomeNext, time.Millisecond)
			collector.RecordCacheHit("job_analysis")
		}()
	}
	wg.Wait()

	assert.Equal(t, float64(10),
		testutil.ToFloat64(collector.phaseExecutionsTotal.WithLabelValues("g", "p", "phase", workflow.OutcomeNext.String())))
	assert.Equal(t, float64(10), testutil.ToFloat64(collector.cacheHits.WithLabelValues("job_analysis")))
}

func TestStatusCode(t *testing.T) {
	cases := map[int]string{200: "2xx", 302: "3xx", 404: "4xx", 503: "5xx", 99: "unknown"}
	for code, want := range cases {
		assert.Equal(t, want, statusCode(code))
	}
}

func TestNewCollectorWith_IsolatedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector := NewCollectorWith(reg, "isolated", nil)

	collector.RunCompleted("g", workflow.ExecutionStatusCompleted, time.Millisecond)

	count, err := testutil.GatherAndCount(reg, "isolated_workflow_runs_total")
	assert.NoError(t, err)
	assert.Equal(t, 1, count)

	// 同名指标注册到另一个 Registry 不冲突
	assert.NotPanics(t, func() { NewCollectorWith(prometheus.NewRegistry(), "isolated", nil) })
}
