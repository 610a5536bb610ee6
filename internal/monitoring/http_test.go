package monitoring

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

type testStatus struct {
	CurrentLap uint32
	Files      []string
}

func TestInfo(t *testing.T) {
	h := NewHTTP(0, func() interface{} {
		return testStatus{CurrentLap: 3, Files: []string{"a.txt", "b.txt"}}
	}, logrus.New())

	server := httptest.NewServer(h.Router())
	defer server.Close()

	resp, err := http.Get(server.URL + "/INFO")

	if err != nil {
		t.Fatal(err)
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var status testStatus

	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatal(err)
	}

	if status.CurrentLap != 3 || len(status.Files) != 2 {
		t.Errorf("unexpected status: %#v", status)
	}
}

func TestMetrics(t *testing.T) {
	InitMonitoring()

	UpdatesReceived.Inc()
	UpdatesHandled.WithLabelValues("row").Inc()

	h := NewHTTP(0, func() interface{} { return nil }, logrus.New())

	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	body := rec.Body.String()

	for _, name := range []string{"actelemetry_updates_received_total", `actelemetry_updates_handled_total{decision="row"}`} {
		if !strings.Contains(body, name) {
			t.Errorf("expected %s in metrics output", name)
		}
	}

	rec = httptest.NewRecorder()
	h.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}
