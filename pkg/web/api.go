package web

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/wipnet/wip-nexus/pkg/database"
	"github.com/wipnet/wip-nexus/pkg/logger"
	"github.com/wipnet/wip-nexus/pkg/service"
)

// API handles REST API endpoints backed by the application service
type API struct {
	svc    *service.Service
	logger *logger.Logger

	// onForecast is notified after a forecast upsert (nil when unused)
	onForecast func(*database.Forecast)
}

// NewAPI creates a new API instance
func NewAPI(svc *service.Service, log *logger.Logger) *API {
	return &API{
		svc:    svc,
		logger: log,
	}
}

// OnForecastUpdate registers a callback invoked after forecast upserts.
func (a *API) OnForecastUpdate(fn func(*database.Forecast)) {
	a.onForecast = fn
}

// HandleStatus handles the /api/status endpoint
func (a *API) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	areaCount, err := a.svc.Areas().Count()
	if err != nil {
		a.serverError(w, err)
		return
	}
	reportsLastHour, err := a.svc.Reports().CountSince(time.Now().Add(-time.Hour))
	if err != nil {
		a.serverError(w, err)
		return
	}

	a.writeJSON(w, map[string]interface{}{
		"status":            "running",
		"service":           "wip-nexus",
		"areas":             areaCount,
		"reports_last_hour": reportsLastHour,
	})
}

// HandleAreas handles GET and PUT on /api/areas
func (a *API) HandleAreas(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		// Nearest-area lookup when coordinates are supplied
		q := r.URL.Query()
		if q.Has("lat") && q.Has("lon") {
			lat, errLat := strconv.ParseFloat(q.Get("lat"), 64)
			lon, errLon := strconv.ParseFloat(q.Get("lon"), 64)
			if errLat != nil || errLon != nil {
				http.Error(w, "bad coordinates", http.StatusBadRequest)
				return
			}
			area, err := a.svc.Areas().Nearest(lat, lon)
			if err != nil {
				a.serverError(w, err)
				return
			}
			if area == nil {
				http.Error(w, "no areas catalogued", http.StatusNotFound)
				return
			}
			a.writeJSON(w, area)
			return
		}

		count, err := a.svc.Areas().Count()
		if err != nil {
			a.serverError(w, err)
			return
		}
		a.writeJSON(w, map[string]interface{}{"count": count})

	case http.MethodPut, http.MethodPost:
		var body struct {
			Code      uint32  `json:"code"`
			Name      string  `json:"name"`
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "bad request body", http.StatusBadRequest)
			return
		}
		area := database.Area{
			Code:      body.Code,
			Name:      body.Name,
			Latitude:  body.Latitude,
			Longitude: body.Longitude,
		}
		if err := a.svc.Areas().Upsert(&area); err != nil {
			a.serverError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleForecasts handles GET and PUT on /api/forecasts
func (a *API) HandleForecasts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		areaCode, err := parseAreaCode(r.URL.Query().Get("area"))
		if err != nil {
			http.Error(w, "bad area code", http.StatusBadRequest)
			return
		}
		fcs, err := a.svc.Forecasts().GetByArea(areaCode)
		if err != nil {
			a.serverError(w, err)
			return
		}
		a.writeJSON(w, fcs)

	case http.MethodPut, http.MethodPost:
		var body struct {
			AreaCode      uint32 `json:"area_code"`
			Day           uint8  `json:"day"`
			WeatherCode   uint16 `json:"weather_code"`
			Temperature   int    `json:"temperature"`
			Precipitation uint8  `json:"precipitation"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "bad request body", http.StatusBadRequest)
			return
		}
		fc := database.Forecast{
			AreaCode:      body.AreaCode,
			Day:           body.Day,
			WeatherCode:   body.WeatherCode,
			Temperature:   body.Temperature,
			Precipitation: body.Precipitation,
		}
		if err := a.svc.Forecasts().Upsert(&fc); err != nil {
			a.serverError(w, err)
			return
		}
		if a.onForecast != nil {
			a.onForecast(&fc)
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleReports handles the /api/reports endpoint
func (a *API) HandleReports(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			http.Error(w, "bad limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	if v := r.URL.Query().Get("area"); v != "" {
		areaCode, err := parseAreaCode(v)
		if err != nil {
			http.Error(w, "bad area code", http.StatusBadRequest)
			return
		}
		reports, err := a.svc.Reports().GetByAreaCode(areaCode, limit)
		if err != nil {
			a.serverError(w, err)
			return
		}
		a.writeJSON(w, reports)
		return
	}

	reports, err := a.svc.Reports().GetRecent(limit)
	if err != nil {
		a.serverError(w, err)
		return
	}
	a.writeJSON(w, reports)
}

func (a *API) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Warn("Failed to encode response", logger.Error(err))
	}
}

func (a *API) serverError(w http.ResponseWriter, err error) {
	a.logger.Error("API request failed", logger.Error(err))
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func parseAreaCode(s string) (uint32, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32)
	return uint32(n), err
}
