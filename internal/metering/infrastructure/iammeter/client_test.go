package iammeter

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	metering "meter-collector/internal/metering/domain"
)

const okPayload = `{
	"successful": true,
	"message": null,
	"data": {
		"localTime": "2026/01/26 10:15:00",
		"gmtTime": "2026/01/26 04:30:00",
		"values": [
			[230.1, 4.2, 950.5, 0.98, 1200.25, 3.5],
			[229.4, 3.1, 700.0, 0.95, 980.75, 0],
			[231.0, 5.6, 1250.8, 0.99, 1500.5, 12.25]
		]
	}
}`

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := NewClient(server.URL+"/api/v1/site/meterdata2/", "secret-token", opts...)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestFetchMapsRowsToPhasesByPosition(t *testing.T) {
	requests := make(chan *http.Request, 1)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		requests <- r.Clone(context.Background())
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(okPayload))
	}, WithLocation(time.UTC))

	sample, err := client.Fetch(context.Background(), "CD0FF6AB")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	req := <-requests
	if req.URL.Path != "/api/v1/site/meterdata2/CD0FF6AB" {
		t.Fatalf("unexpected path %s", req.URL.Path)
	}
	if token := req.URL.Query().Get("token"); token != "secret-token" {
		t.Fatalf("unexpected token %q", token)
	}
	if !sample.Timestamp.Equal(time.Date(2026, 1, 26, 10, 15, 0, 0, time.UTC)) {
		t.Fatalf("unexpected timestamp %s", sample.Timestamp)
	}
	if sample.LocalTime != "2026/01/26 10:15:00" || sample.GMTTime != "2026/01/26 04:30:00" {
		t.Fatalf("unexpected times %q %q", sample.LocalTime, sample.GMTTime)
	}

	want := [3]metering.PhaseReading{
		{Phase: metering.PhaseA, Voltage: 230.1, Current: 4.2, ActivePower: 950.5, PowerFactor: 0.98, GridConsumption: 1200.25, ExportedPower: 3.5},
		{Phase: metering.PhaseB, Voltage: 229.4, Current: 3.1, ActivePower: 700.0, PowerFactor: 0.95, GridConsumption: 980.75, ExportedPower: 0},
		{Phase: metering.PhaseC, Voltage: 231.0, Current: 5.6, ActivePower: 1250.8, PowerFactor: 0.99, GridConsumption: 1500.5, ExportedPower: 12.25},
	}
	if sample.Phases != want {
		t.Fatalf("unexpected phases %+v", sample.Phases)
	}
}

func TestFetchFailures(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		kind   error
	}{
		{name: "http status", status: http.StatusBadGateway, body: `{}`, kind: metering.ErrTransport},
		{name: "unsuccessful flag", status: http.StatusOK, body: `{"successful": false, "message": "token expired"}`, kind: metering.ErrProtocol},
		{name: "invalid json", status: http.StatusOK, body: `not json`, kind: metering.ErrProtocol},
		{name: "missing data", status: http.StatusOK, body: `{"successful": true}`, kind: metering.ErrProtocol},
		{name: "two rows", status: http.StatusOK, body: `{"successful": true, "data": {"localTime": "2026/01/26 10:15:00", "values": [[1,2,3,4,5,6],[1,2,3,4,5,6]]}}`, kind: metering.ErrProtocol},
		{name: "short row", status: http.StatusOK, body: `{"successful": true, "data": {"localTime": "2026/01/26 10:15:00", "values": [[1,2,3,4,5,6],[1,2,3,4,5],[1,2,3,4,5,6]]}}`, kind: metering.ErrProtocol},
		{name: "null field", status: http.StatusOK, body: `{"successful": true, "data": {"localTime": "2026/01/26 10:15:00", "values": [[1,2,3,4,5,6],[1,2,null,4,5,6],[1,2,3,4,5,6]]}}`, kind: metering.ErrProtocol},
		{name: "string field", status: http.StatusOK, body: `{"successful": true, "data": {"localTime": "2026/01/26 10:15:00", "values": [[1,2,3,4,5,"6"],[1,2,3,4,5,6],[1,2,3,4,5,6]]}}`, kind: metering.ErrProtocol},
		{name: "bad local time", status: http.StatusOK, body: `{"successful": true, "data": {"localTime": "26-01-2026", "values": [[1,2,3,4,5,6],[1,2,3,4,5,6],[1,2,3,4,5,6]]}}`, kind: metering.ErrProtocol},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			})
			_, err := client.Fetch(context.Background(), "57DB095D")
			if err == nil {
				t.Fatalf("expected error")
			}
			if !errors.Is(err, tc.kind) {
				t.Fatalf("expected %v, got %v", tc.kind, err)
			}
			var fetchErr *metering.FetchError
			if !errors.As(err, &fetchErr) || fetchErr.SerialNumber != "57DB095D" {
				t.Fatalf("expected fetch error for meter, got %v", err)
			}
		})
	}
}

func TestFetchTimeoutIsTransportFailure(t *testing.T) {
	release := make(chan struct{})
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, WithTimeout(50*time.Millisecond))
	defer close(release)

	_, err := client.Fetch(context.Background(), "DAD94549")
	if !errors.Is(err, metering.ErrTransport) {
		t.Fatalf("expected transport failure, got %v", err)
	}
}

func TestFetchCancelledContext(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(okPayload))
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Fetch(ctx, "8FA834AC")
	if !errors.Is(err, metering.ErrTransport) {
		t.Fatalf("expected transport failure, got %v", err)
	}
}

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient("", "token"); err == nil {
		t.Fatalf("expected error for empty base url")
	}
	if _, err := NewClient(DefaultBaseURL, ""); err == nil {
		t.Fatalf("expected error for empty token")
	}
}
