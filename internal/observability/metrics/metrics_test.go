package metrics

import (
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollectorMetrics(t *testing.T) {
	Init(nil, nil)

	beforeFetch := testutil.ToFloat64(fetchTotal.WithLabelValues(ResultTransport))
	ObserveFetch(ResultTransport, 20*time.Millisecond)
	if got := testutil.ToFloat64(fetchTotal.WithLabelValues(ResultTransport)); got != beforeFetch+1 {
		t.Fatalf("fetch transport = %v, want %v", got, beforeFetch+1)
	}

	beforePass := testutil.ToFloat64(passTotal.WithLabelValues(ResultSuccess))
	ObservePass("", time.Second)
	if got := testutil.ToFloat64(passTotal.WithLabelValues(ResultSuccess)); got != beforePass+1 {
		t.Fatalf("pass success = %v, want %v", got, beforePass+1)
	}

	beforeSkipped := testutil.ToFloat64(ticksSkipped)
	IncTickSkipped()
	if got := testutil.ToFloat64(ticksSkipped); got != beforeSkipped+1 {
		t.Fatalf("ticks skipped = %v", got)
	}

	SetEngineRunning(true)
	if got := testutil.ToFloat64(engineRunning); got != 1 {
		t.Fatalf("engine running = %v", got)
	}
	SetEngineRunning(false)
	if got := testutil.ToFloat64(engineRunning); got != 0 {
		t.Fatalf("engine running = %v", got)
	}
}

func TestQueryCount(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM meters")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	if got := queryCount(db, nil, "SELECT COUNT(*) FROM meters"); got != 3 {
		t.Fatalf("queryCount = %v, want 3", got)
	}
	if got := queryCount(nil, nil, "SELECT 1"); got != 0 {
		t.Fatalf("queryCount(nil) = %v", got)
	}
}
