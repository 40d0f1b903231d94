package web

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/wipnet/wip-nexus/pkg/config"
	"github.com/wipnet/wip-nexus/pkg/database"
	"github.com/wipnet/wip-nexus/pkg/logger"
	"github.com/wipnet/wip-nexus/pkg/network"
	"github.com/wipnet/wip-nexus/pkg/service"
)

func testAPI(t *testing.T) (*API, *service.Service) {
	t.Helper()

	log := logger.New(logger.Config{Level: "error", Output: io.Discard})
	db, err := database.NewDB(config.DatabaseConfig{
		Path: filepath.Join(t.TempDir(), "web.db"),
	}, log)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	svc := service.New(db, log)
	return NewAPI(svc, log), svc
}

func TestAPI_Status(t *testing.T) {
	api, svc := testAPI(t)

	if err := svc.Areas().Upsert(&database.Area{Code: 130010, Name: "Tokyo"}); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	req := httptest.NewRequest("GET", "/api/status", nil)
	w := httptest.NewRecorder()
	api.HandleStatus(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	if body["service"] != "wip-nexus" {
		t.Errorf("service = %v", body["service"])
	}
	if body["areas"] != float64(1) {
		t.Errorf("areas = %v", body["areas"])
	}
}

func TestAPI_AreasUpsertAndLookup(t *testing.T) {
	api, _ := testAPI(t)

	payload := `{"code":130010,"name":"Tokyo","latitude":35.6762,"longitude":139.6503}`
	req := httptest.NewRequest("PUT", "/api/areas", bytes.NewBufferString(payload))
	w := httptest.NewRecorder()
	api.HandleAreas(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("upsert status = %d: %s", w.Code, w.Body.String())
	}

	req = httptest.NewRequest("GET", "/api/areas?lat=35.5&lon=139.5", nil)
	w = httptest.NewRecorder()
	api.HandleAreas(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("lookup status = %d", w.Code)
	}

	var area database.Area
	if err := json.Unmarshal(w.Body.Bytes(), &area); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	if area.Code != 130010 || area.Name != "Tokyo" {
		t.Errorf("unexpected area: %+v", area)
	}
}

func TestAPI_AreasLookup_EmptyCatalog(t *testing.T) {
	api, _ := testAPI(t)

	req := httptest.NewRequest("GET", "/api/areas?lat=35.5&lon=139.5", nil)
	w := httptest.NewRecorder()
	api.HandleAreas(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestAPI_AreasBadCoordinates(t *testing.T) {
	api, _ := testAPI(t)

	req := httptest.NewRequest("GET", "/api/areas?lat=north&lon=west", nil)
	w := httptest.NewRecorder()
	api.HandleAreas(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestAPI_ForecastsRoundTrip(t *testing.T) {
	api, _ := testAPI(t)

	var updated *database.Forecast
	api.OnForecastUpdate(func(fc *database.Forecast) { updated = fc })

	payload := `{"area_code":130010,"day":1,"weather_code":200,"temperature":22,"precipitation":60}`
	req := httptest.NewRequest("PUT", "/api/forecasts", bytes.NewBufferString(payload))
	w := httptest.NewRecorder()
	api.HandleForecasts(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("upsert status = %d: %s", w.Code, w.Body.String())
	}
	if updated == nil || updated.AreaCode != 130010 {
		t.Errorf("forecast update callback not fired: %+v", updated)
	}

	req = httptest.NewRequest("GET", "/api/forecasts?area=130010", nil)
	w = httptest.NewRecorder()
	api.HandleForecasts(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}

	var fcs []database.Forecast
	if err := json.Unmarshal(w.Body.Bytes(), &fcs); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	if len(fcs) != 1 || fcs[0].WeatherCode != 200 {
		t.Errorf("unexpected forecasts: %+v", fcs)
	}
}

func TestAPI_Reports(t *testing.T) {
	api, svc := testAPI(t)

	_, err := svc.IngestReport(&network.ReportData{
		PacketID:   7,
		AreaCode:   130010,
		Timestamp:  uint64(time.Now().Unix()),
		Alerts:     []string{"flood"},
		SourceAddr: "10.0.0.1:1",
	})
	if err != nil {
		t.Fatalf("ingest failed: %v", err)
	}

	req := httptest.NewRequest("GET", "/api/reports?area=130010", nil)
	w := httptest.NewRecorder()
	api.HandleReports(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var reports []database.Report
	if err := json.Unmarshal(w.Body.Bytes(), &reports); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	if len(reports) != 1 || reports[0].PacketID != 7 {
		t.Errorf("unexpected reports: %+v", reports)
	}
}

func TestAPI_ReportsBadLimit(t *testing.T) {
	api, _ := testAPI(t)

	req := httptest.NewRequest("GET", "/api/reports?limit=99999", nil)
	w := httptest.NewRecorder()
	api.HandleReports(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestAPI_MethodNotAllowed(t *testing.T) {
	api, _ := testAPI(t)

	req := httptest.NewRequest("DELETE", "/api/status", nil)
	w := httptest.NewRecorder()
	api.HandleStatus(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", w.Code)
	}
}
