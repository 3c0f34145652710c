package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPProviderSendsOnlyStructuredFields(t *testing.T) {
	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]string{"interpretation": "Hold allocation."})
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, srv.Client())
	text, err := p.Interpret(context.Background(), briefingReq())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "Hold allocation." {
		t.Fatalf("expected interpretation text, got %q", text)
	}

	want := map[string]bool{"model": true, "volume": true, "confidence": true, "scope_label": true}
	for key := range captured {
		if !want[key] {
			t.Fatalf("unexpected field %q crossed the wire", key)
		}
	}
	if captured["model"] != "random_forest" || captured["volume"] != float64(1200) {
		t.Fatalf("expected structured fields preserved, got %v", captured)
	}
}

func TestHTTPProviderUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "service melting", http.StatusBadGateway)
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, srv.Client())
	_, err := p.Interpret(context.Background(), briefingReq())

	var upstream *UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
	if upstream.Status != http.StatusBadGateway {
		t.Fatalf("expected status 502, got %d", upstream.Status)
	}
}

func TestHTTPProviderMalformedResponse(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"not json", "<html>oops</html>"},
		{"missing field", `{"something_else": "x"}`},
		{"empty interpretation", `{"interpretation": "  "}`},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(tc.body))
		}))
		p := NewHTTPProvider(srv.URL, srv.Client())
		_, err := p.Interpret(context.Background(), briefingReq())
		srv.Close()
		if !errors.Is(err, ErrMalformedResponse) {
			t.Fatalf("%s: expected ErrMalformedResponse, got %v", tc.name, err)
		}
	}
}
