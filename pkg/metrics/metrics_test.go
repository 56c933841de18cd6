package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestStorageResult(t *testing.T) {
	before := testutil.ToFloat64(StorageOps.WithLabelValues("file", "set", "error"))
	StorageResult("file", "set", errors.New("disk full"))
	after := testutil.ToFloat64(StorageOps.WithLabelValues("file", "set", "error"))
	if after-before != 1 {
		t.Fatalf("error counter moved by %v", after-before)
	}
}

func TestHandlerExposesCollectors(t *testing.T) {
	Init()
	Init()
	GuardDecisions.WithLabelValues("allow").Inc()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "uninotes_guard_decisions_total") {
		t.Fatal("guard counter missing from /metrics output")
	}
}
