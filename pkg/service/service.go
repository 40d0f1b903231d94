package service

import (
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/wipnet/wip-nexus/pkg/database"
	"github.com/wipnet/wip-nexus/pkg/logger"
	"github.com/wipnet/wip-nexus/pkg/network"
)

// alertWindow bounds how far back ingested reports contribute alert and
// disaster lists to query answers.
const alertWindow = 6 * time.Hour

// Service is the application core: it resolves locations against the area
// catalog, answers forecast queries from stored forecast rows, and ingests
// reports into the database. It implements network.Handler.
type Service struct {
	areas     *database.AreaRepository
	forecasts *database.ForecastRepository
	reports   *database.ReportRepository
	log       *logger.Logger
	clock     clockwork.Clock

	// onReport is notified after each persisted report (nil when unused)
	onReport func(*database.Report)
}

// New creates the service on top of an opened database.
func New(db *database.DB, log *logger.Logger) *Service {
	return &Service{
		areas:     database.NewAreaRepository(db),
		forecasts: database.NewForecastRepository(db),
		reports:   database.NewReportRepository(db),
		log:       log.WithComponent("service"),
		clock:     clockwork.NewRealClock(),
	}
}

// WithClock replaces the wall clock, for tests.
func (s *Service) WithClock(clock clockwork.Clock) *Service {
	s.clock = clock
	return s
}

// OnReport registers a callback invoked after each persisted report.
func (s *Service) OnReport(fn func(*database.Report)) {
	s.onReport = fn
}

// Areas exposes the area repository for the admin surface.
func (s *Service) Areas() *database.AreaRepository { return s.areas }

// Forecasts exposes the forecast repository for the admin surface.
func (s *Service) Forecasts() *database.ForecastRepository { return s.forecasts }

// Reports exposes the report repository for the admin surface.
func (s *Service) Reports() *database.ReportRepository { return s.reports }

// ResolveArea maps coordinates to the nearest catalogued area.
func (s *Service) ResolveArea(lat, lon float64) (uint32, error) {
	area, err := s.areas.Nearest(lat, lon)
	if err != nil {
		return 0, fmt.Errorf("area lookup failed: %w", err)
	}
	if area == nil {
		return 0, network.ErrNotFound
	}

	s.log.Debug("Resolved coordinates",
		logger.Float64("lat", lat),
		logger.Float64("lon", lon),
		logger.Uint32("area_code", area.Code))
	return area.Code, nil
}

// Forecast answers a query from the stored forecast for (area, day),
// augmented with alert and disaster lists from recent reports.
func (s *Service) Forecast(areaCode uint32, day uint8) (*network.Forecast, error) {
	fc, err := s.forecasts.Get(areaCode, day)
	if err != nil {
		return nil, fmt.Errorf("forecast lookup failed: %w", err)
	}
	if fc == nil {
		return nil, network.ErrNotFound
	}

	alerts, disasters, err := s.activeLists(areaCode)
	if err != nil {
		return nil, err
	}

	return &network.Forecast{
		WeatherCode:   fc.WeatherCode,
		Temperature:   fc.Temperature,
		Precipitation: fc.Precipitation,
		Alerts:        alerts,
		Disasters:     disasters,
	}, nil
}

// IngestReport persists an observation and answers with the current
// conditions for the reported area.
func (s *Service) IngestReport(rep *network.ReportData) (*network.Forecast, error) {
	record := &database.Report{
		PacketID:      rep.PacketID,
		AreaCode:      rep.AreaCode,
		Alerts:        database.JoinList(rep.Alerts),
		Disasters:     database.JoinList(rep.Disasters),
		SourceAddr:    rep.SourceAddr,
		Authenticated: rep.Authenticated,
		ReportedAt:    time.Unix(int64(rep.Timestamp), 0),
	}
	if err := s.reports.Create(record); err != nil {
		return nil, fmt.Errorf("report persist failed: %w", err)
	}

	s.log.Info("Ingested report",
		logger.Uint32("area_code", rep.AreaCode),
		logger.String("source", rep.SourceAddr),
		logger.Bool("authenticated", rep.Authenticated),
		logger.Int("alerts", len(rep.Alerts)),
		logger.Int("disasters", len(rep.Disasters)))

	if s.onReport != nil {
		s.onReport(record)
	}

	// The acknowledgement carries current conditions when we have them
	resp := &network.Forecast{}
	fc, err := s.forecasts.Get(rep.AreaCode, 0)
	if err != nil {
		return nil, fmt.Errorf("forecast lookup failed: %w", err)
	}
	if fc != nil {
		resp.WeatherCode = fc.WeatherCode
		resp.Temperature = fc.Temperature
		resp.Precipitation = fc.Precipitation
	}

	alerts, disasters, err := s.activeLists(rep.AreaCode)
	if err != nil {
		return nil, err
	}
	resp.Alerts = alerts
	resp.Disasters = disasters

	return resp, nil
}

// activeLists merges the alert/disaster lists from reports inside the
// activity window, newest first, without duplicates.
func (s *Service) activeLists(areaCode uint32) ([]string, []string, error) {
	recent, err := s.reports.GetByAreaCode(areaCode, 50)
	if err != nil {
		return nil, nil, fmt.Errorf("report lookup failed: %w", err)
	}

	cutoff := s.clock.Now().Add(-alertWindow)
	var alerts, disasters []string
	seenAlert := map[string]bool{}
	seenDisaster := map[string]bool{}

	for _, rep := range recent {
		if rep.ReportedAt.Before(cutoff) {
			continue
		}
		for _, a := range rep.AlertList() {
			if !seenAlert[a] {
				seenAlert[a] = true
				alerts = append(alerts, a)
			}
		}
		for _, d := range rep.DisasterList() {
			if !seenDisaster[d] {
				seenDisaster[d] = true
				disasters = append(disasters, d)
			}
		}
	}

	return alerts, disasters, nil
}
