package health

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/star/tleprop/internal/tle"
)

func TestHealthz(t *testing.T) {
	w := httptest.NewRecorder()
	Healthz(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK || w.Body.String() != "ok\n" {
		t.Errorf("got %d %q", w.Code, w.Body.String())
	}
}

func TestReadyz(t *testing.T) {
	store := tle.NewStore()

	tests := []struct {
		name         string
		fetchEnabled bool
		loaded       bool
		wantStatus   int
	}{
		{"fetch disabled", false, false, http.StatusOK},
		{"waiting for catalog", true, false, http.StatusServiceUnavailable},
		{"catalog loaded", true, true, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.loaded {
				store.Set(tle.NewDataset("test", time.Now(), nil))
			}
			w := httptest.NewRecorder()
			Readyz(store, tt.fetchEnabled)(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}
