package riskapi_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/georisk/georisk/internal/adapters/riskapi"
	"github.com/georisk/georisk/internal/core/domain"
	"github.com/georisk/georisk/internal/pkg/geospatial"
)

func testRing(t *testing.T) orb.Ring {
	t.Helper()
	ring, err := geospatial.Circle(domain.GeoPoint{Lat: -25.4294, Lng: -49.2733}, 1000)
	if err != nil {
		t.Fatalf("circle: %v", err)
	}
	return ring
}

func newServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func respondJSON(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	}
}

func TestClient_QuerySendsPolygon(t *testing.T) {
	var gotMethod, gotPath, gotType, gotCache string
	var gotPolygon *geojson.Geometry
	srv, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		gotType, gotCache = r.Header.Get("Content-Type"), r.Header.Get("Cache-Control")
		var body struct {
			Polygon json.RawMessage `json:"polygon"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		g, err := geojson.UnmarshalGeometry(body.Polygon)
		if err != nil {
			t.Errorf("decode polygon: %v", err)
		}
		gotPolygon = g
		respondJSON(`{"rio_mais_proximo":"Rio Belém","distancia_rio_m":152.3,"queda_relativa_m":4.2,"resposta_ia":"Área de **risco alto**.","risk_level":"alto"}`)(w, r)
	})

	c := riskapi.New(riskapi.Config{BaseURL: srv.URL + "/docs/"})
	res, err := c.Query(context.Background(), testRing(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotMethod != http.MethodPost || gotPath != "/geo/risk" {
		t.Errorf("unexpected request %s %s", gotMethod, gotPath)
	}
	if gotType != "application/json" || gotCache != "no-store" {
		t.Errorf("unexpected headers content-type=%q cache-control=%q", gotType, gotCache)
	}
	poly, ok := gotPolygon.Geometry().(orb.Polygon)
	if !ok {
		t.Fatalf("expected Polygon, got %T", gotPolygon.Geometry())
	}
	if len(poly) != 1 || len(poly[0]) != 65 || !poly[0].Closed() {
		t.Errorf("expected one closed 65-point ring, got %d rings", len(poly))
	}

	if res.Level != domain.RiskHigh || res.NearestWaterBody != "Rio Belém" {
		t.Errorf("unexpected result %+v", res)
	}
	if res.DistanceToWaterMeters != 152.3 || res.RelativeDropMeters == nil || *res.RelativeDropMeters != 4.2 {
		t.Errorf("unexpected distances %+v", res)
	}
}

func TestClient_ExplicitLevels(t *testing.T) {
	tests := []struct {
		value string
		want  domain.RiskLevel
	}{
		{"baixo", domain.RiskLow},
		{"medio", domain.RiskMedium},
		{"médio", domain.RiskMedium},
		{"alto", domain.RiskHigh},
		{"HIGH", domain.RiskHigh},
		{"low", domain.RiskLow},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			// The narrative disagrees on purpose: the explicit field wins.
			body := `{"rio_mais_proximo":"R","distancia_rio_m":1,"queda_relativa_m":null,"resposta_ia":"risco moderado","risk_level":"` + tt.value + `"}`
			srv, _ := newServer(t, respondJSON(body))

			res, err := riskapi.New(riskapi.Config{BaseURL: srv.URL}).Query(context.Background(), testRing(t))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.Level != tt.want {
				t.Errorf("expected %s, got %s", tt.want, res.Level)
			}
			if res.RelativeDropMeters != nil {
				t.Error("expected nil relative drop")
			}
		})
	}
}

func TestClient_NarrativeFallback(t *testing.T) {
	body := `{"rio_mais_proximo":"Rio Iguaçu","distancia_rio_m":40,"queda_relativa_m":1.5,"resposta_ia":"A região do planalto apresenta baixo risco de alagamento."}`
	srv, _ := newServer(t, respondJSON(body))

	res, err := riskapi.New(riskapi.Config{BaseURL: srv.URL}).Query(context.Background(), testRing(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Level != domain.RiskLow {
		t.Errorf("expected low from narrative, got %s", res.Level)
	}
}

func TestClient_Non2xxIsTransportError(t *testing.T) {
	srv, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, "internal failure")
	})

	_, err := riskapi.New(riskapi.Config{BaseURL: srv.URL}).Query(context.Background(), testRing(t))
	if !errors.Is(err, domain.ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
	var te *domain.TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected *TransportError, got %T", err)
	}
	if te.StatusCode != 500 || te.Body != "internal failure" {
		t.Errorf("unexpected transport error %+v", te)
	}
	if !strings.HasSuffix(te.URL, "/geo/risk") {
		t.Errorf("unexpected URL %q", te.URL)
	}
	if !domain.IsRetryable(err) {
		t.Error("transport errors are retryable")
	}
}

func TestClient_ErrorBodyTruncated(t *testing.T) {
	srv, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, strings.Repeat("x", 10000))
	})

	_, err := riskapi.New(riskapi.Config{BaseURL: srv.URL}).Query(context.Background(), testRing(t))
	var te *domain.TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected *TransportError, got %v", err)
	}
	if len(te.Body) != 2048 {
		t.Errorf("expected body truncated to 2048 bytes, got %d", len(te.Body))
	}
}

func TestClient_NetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := riskapi.New(riskapi.Config{BaseURL: url}).Query(context.Background(), testRing(t))
	var te *domain.TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected *TransportError, got %v", err)
	}
	if te.StatusCode != 0 || te.Err == nil {
		t.Errorf("expected status 0 with cause, got %+v", te)
	}
}

func TestClient_MalformedResponses(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `<html>oops</html>`},
		{"missing distance", `{"rio_mais_proximo":"R","resposta_ia":"risco alto","risk_level":"alto"}`},
		{"missing river", `{"distancia_rio_m":5,"resposta_ia":"risco alto","risk_level":"alto"}`},
		{"negative distance", `{"rio_mais_proximo":"R","distancia_rio_m":-1,"resposta_ia":"x","risk_level":"alto"}`},
		{"no level anywhere", `{"rio_mais_proximo":"R","distancia_rio_m":5,"resposta_ia":"Sem dados suficientes.","risk_level":"desconhecido"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newServer(t, respondJSON(tt.body))

			_, err := riskapi.New(riskapi.Config{BaseURL: srv.URL}).Query(context.Background(), testRing(t))
			if !errors.Is(err, domain.ErrMalformedResponse) {
				t.Errorf("expected ErrMalformedResponse, got %v", err)
			}
			if errors.Is(err, domain.ErrTransport) {
				t.Error("malformed responses must be distinguishable from transport errors")
			}
		})
	}
}

func TestClient_NotConfiguredMakesNoRequest(t *testing.T) {
	c := riskapi.New(riskapi.Config{BaseURL: "   "})
	if c.Configured() {
		t.Fatal("expected unconfigured client")
	}

	_, err := c.Query(context.Background(), testRing(t))
	if !errors.Is(err, domain.ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}
	if domain.IsRetryable(err) {
		t.Error("configuration errors are not retryable")
	}
}

func TestClient_InvalidRingMakesNoRequest(t *testing.T) {
	srv, hits := newServer(t, respondJSON(`{}`))
	c := riskapi.New(riskapi.Config{BaseURL: srv.URL})

	open := orb.Ring{{0, 0}, {1, 0}, {1, 1}, {0, 1}}
	if _, err := c.Query(context.Background(), open); !errors.Is(err, domain.ErrInvalidGeometry) {
		t.Errorf("expected ErrInvalidGeometry, got %v", err)
	}
	if hits.Load() != 0 {
		t.Errorf("expected no request, got %d", hits.Load())
	}
}

func TestClient_CustomEndpointAndHTTPClient(t *testing.T) {
	var gotPath string
	srv, hits := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		respondJSON(`{"rio_mais_proximo":"R","distancia_rio_m":5,"resposta_ia":"","risk_level":"baixo"}`)(w, r)
	})

	c := riskapi.New(riskapi.Config{BaseURL: srv.URL, Endpoint: "v2/risk"}, riskapi.WithHTTPClient(srv.Client()))
	if _, err := c.Query(context.Background(), testRing(t)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPath != "/v2/risk" || hits.Load() != 1 {
		t.Errorf("expected one request to /v2/risk, got %q x%d", gotPath, hits.Load())
	}
}

func TestResolveURL(t *testing.T) {
	tests := []struct {
		base, endpoint, want string
	}{
		{"http://localhost:8000", "", "http://localhost:8000/geo/risk"},
		{"http://localhost:8000/", "", "http://localhost:8000/geo/risk"},
		{"http://localhost:8000///", "", "http://localhost:8000/geo/risk"},
		{" http://localhost:8000/docs ", "", "http://localhost:8000/geo/risk"},
		{"http://localhost:8000/docs/", "", "http://localhost:8000/geo/risk"},
		{"https://api.example.com/v1", "risk", "https://api.example.com/v1/risk"},
		{"https://api.example.com", "/custom", "https://api.example.com/custom"},
		{"", "/geo/risk", ""},
		{"  ", "", ""},
	}
	for _, tt := range tests {
		if got := riskapi.ResolveURL(tt.base, tt.endpoint); got != tt.want {
			t.Errorf("ResolveURL(%q, %q) = %q, want %q", tt.base, tt.endpoint, got, tt.want)
		}
	}
}
