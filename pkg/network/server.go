package network

import (
	"context"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/wipnet/wip-nexus/pkg/config"
	"github.com/wipnet/wip-nexus/pkg/logger"
	"github.com/wipnet/wip-nexus/pkg/metrics"
	"github.com/wipnet/wip-nexus/pkg/protocol"
)

// ErrNotFound is returned by Handler methods when no data exists for the
// requested coordinates or area. The server answers such requests with a
// Not Found error packet.
var ErrNotFound = errors.New("not found")

// Forecast is the answer a Handler produces for a query or report exchange.
type Forecast struct {
	WeatherCode   uint16
	Temperature   int // degrees Celsius
	Precipitation uint8
	Alerts        []string
	Disasters     []string
}

// ReportData is an accepted observation handed to the Handler for ingest.
// Report requests are header-only packets, so the observation itself is the
// alert/disaster lists plus the header metadata.
type ReportData struct {
	PacketID      uint16
	AreaCode      uint32
	Timestamp     uint64
	Alerts        []string
	Disasters     []string
	SourceAddr    string
	Authenticated bool
}

// Handler supplies the application behavior behind the wire protocol.
type Handler interface {
	// ResolveArea maps coordinates to an area code, or ErrNotFound.
	ResolveArea(lat, lon float64) (uint32, error)

	// Forecast returns data for an area and day offset, or ErrNotFound.
	Forecast(areaCode uint32, day uint8) (*Forecast, error)

	// IngestReport persists an observation and returns the conditions to
	// echo back to the reporting node.
	IngestReport(report *ReportData) (*Forecast, error)
}

// Server is the UDP protocol server: one socket, one receive loop, one
// handler goroutine per datagram.
type Server struct {
	config  config.ServerConfig
	log     *logger.Logger
	conn    *net.UDPConn
	codec   *protocol.Codec
	handler Handler
	clock   clockwork.Clock
	metrics *metrics.Metrics
	hasher  protocol.AuthHasher

	// started is closed once the UDP listener is bound and ready
	started chan struct{}
}

// NewServer creates a new UDP protocol server
func NewServer(cfg config.ServerConfig, handler Handler, log *logger.Logger) *Server {
	return &Server{
		config:  cfg,
		log:     log.WithComponent("network.server"),
		codec:   protocol.DefaultCodec(),
		handler: handler,
		clock:   clockwork.NewRealClock(),
		hasher:  protocol.SHA256AuthHasher{},
		started: make(chan struct{}),
	}
}

// WithClock replaces the wall clock, for tests.
func (s *Server) WithClock(clock clockwork.Clock) *Server {
	s.clock = clock
	return s
}

// WithMetrics attaches a metrics set.
func (s *Server) WithMetrics(m *metrics.Metrics) *Server {
	s.metrics = m
	return s
}

// WithCodec replaces the extension codec.
func (s *Server) WithCodec(c *protocol.Codec) *Server {
	s.codec = c
	return s
}

// Start binds the UDP socket and serves until the context is cancelled
func (s *Server) Start(ctx context.Context) error {
	localAddr := &net.UDPAddr{
		IP:   net.ParseIP(s.config.Host),
		Port: s.config.Port,
	}

	conn, err := net.ListenUDP("udp", localAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on UDP: %w", err)
	}
	s.conn = conn
	// Signal that the server is ready to accept packets
	select {
	case <-s.started: // already closed
	default:
		close(s.started)
	}
	defer func() {
		_ = s.conn.Close()
	}()

	s.log.Info("Server started",
		logger.String("addr", conn.LocalAddr().String()),
		logger.Bool("require_auth", s.config.RequireAuth))

	return s.receiveLoop(ctx)
}

// WaitStarted blocks until the listener is bound or the context ends.
func (s *Server) WaitStarted(ctx context.Context) error {
	select {
	case <-s.started:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Addr returns the local UDP address the server is bound to. It should be called after WaitStarted.
func (s *Server) Addr() (*net.UDPAddr, error) {
	if s.conn == nil {
		return nil, fmt.Errorf("server not started")
	}
	udpAddr, ok := s.conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return nil, fmt.Errorf("not a UDP address")
	}
	return udpAddr, nil
}

// receiveLoop continuously receives and processes packets
func (s *Server) receiveLoop(ctx context.Context) error {
	buffer := make([]byte, 4096)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		// Set read deadline to allow context checking
		if err := s.conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond)); err != nil {
			s.log.Warn("Failed to set read deadline", logger.Error(err))
			continue
		}
		n, addr, err := s.conn.ReadFromUDP(buffer)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			s.log.Error("Failed to read from UDP", logger.Error(err))
			continue
		}

		data := make([]byte, n)
		copy(data, buffer[:n])
		go s.handlePacket(data, addr)
	}
}

// handlePacket dispatches one datagram by its type discriminant
func (s *Server) handlePacket(data []byte, addr *net.UDPAddr) {
	if s.metrics != nil {
		s.metrics.BytesReceived.Add(float64(len(data)))
	}

	typ, err := protocol.PeekType(data)
	if err != nil {
		s.log.Debug("Runt datagram", logger.String("from", addr.String()), logger.Int("size", len(data)))
		s.countDecodeError("runt")
		return
	}

	switch typ {
	case protocol.TypeLocationRequest:
		s.countReceived("location_request")
		s.handleLocationRequest(data, addr)
	case protocol.TypeQueryRequest:
		s.countReceived("query_request")
		s.handleQueryRequest(data, addr)
	case protocol.TypeReportRequest:
		s.countReceived("report_request")
		s.handleReportRequest(data, addr)
	default:
		// Response types arriving at a server are a peer bug, not ours
		s.log.Debug("Unexpected packet type",
			logger.String("from", addr.String()),
			logger.Int("type", int(typ)))
		s.countDecodeError("unexpected_type")
	}
}

func (s *Server) handleLocationRequest(data []byte, addr *net.UDPAddr) {
	req, err := protocol.ParseLocationRequest(s.codec, data)
	if err != nil {
		s.rejectParse(data, addr, err)
		return
	}

	areaCode, err := s.handler.ResolveArea(req.Latitude, req.Longitude)
	if err != nil {
		s.sendError(req.Header, addr, s.mapHandlerError(err))
		return
	}

	resp := &protocol.LocationResponse{Header: s.responseHeader(req.Header)}
	resp.Header.AreaCode = areaCode
	resp.Extensions = s.responseAuthExt(resp.Header)

	s.log.Debug("Resolved location",
		logger.Float64("lat", req.Latitude),
		logger.Float64("lon", req.Longitude),
		logger.Uint32("area_code", areaCode))

	s.send(resp, addr, "location_response")
}

func (s *Server) handleQueryRequest(data []byte, addr *net.UDPAddr) {
	req, err := protocol.ParseQueryRequest(s.codec, data)
	if err != nil {
		s.rejectParse(data, addr, err)
		return
	}

	fc, err := s.handler.Forecast(req.Header.AreaCode, req.Header.Day)
	if err != nil {
		s.sendError(req.Header, addr, s.mapHandlerError(err))
		return
	}

	resp := &protocol.QueryResponse{Header: s.responseHeader(req.Header)}
	fillResponse(&resp.Header, &resp.Tail, fc, req.Header)
	if req.Header.Alert {
		resp.Alerts = fc.Alerts
	}
	if req.Header.Disaster {
		resp.Disasters = fc.Disasters
	}
	resp.Extensions = s.responseAuthExt(resp.Header)

	if s.metrics != nil {
		s.metrics.QueriesServed.Inc()
	}
	s.send(resp, addr, "query_response")
}

func (s *Server) handleReportRequest(data []byte, addr *net.UDPAddr) {
	req, err := protocol.ParseReportRequest(s.codec, data)
	if err != nil {
		s.rejectParse(data, addr, err)
		return
	}

	authed, code := s.checkAuth(req)
	if code != 0 {
		if s.metrics != nil {
			s.metrics.AuthFailures.Inc()
		}
		s.sendError(req.Header, addr, code)
		return
	}

	report := &ReportData{
		PacketID:      req.Header.PacketID,
		AreaCode:      req.Header.AreaCode,
		Timestamp:     req.Header.Timestamp,
		Alerts:        req.Alerts,
		Disasters:     req.Disasters,
		SourceAddr:    addr.String(),
		Authenticated: authed,
	}

	fc, err := s.handler.IngestReport(report)
	if err != nil {
		s.sendError(req.Header, addr, s.mapHandlerError(err))
		return
	}

	// The acknowledgement always echoes current conditions; report requests
	// carry no field selection flags.
	resp := &protocol.ReportResponse{Header: s.responseHeader(req.Header)}
	resp.Header.Weather = true
	resp.Header.Temperature = true
	resp.Header.Pop = true
	resp.Header.Alert = len(fc.Alerts) > 0
	resp.Header.Disaster = len(fc.Disasters) > 0
	resp.Tail = protocol.Tail{
		WeatherCode:   fc.WeatherCode,
		Temperature:   fc.Temperature,
		Precipitation: fc.Precipitation,
	}
	resp.Alerts = fc.Alerts
	resp.Disasters = fc.Disasters
	resp.Source = addr.String()
	resp.Extensions = s.responseAuthExt(resp.Header)

	if s.metrics != nil {
		s.metrics.ReportsIngested.Inc()
	}
	s.send(resp, addr, "report_response")
}

// checkAuth validates the report auth digest. Returns whether the request
// authenticated and a non-zero error code on rejection.
func (s *Server) checkAuth(req *protocol.ReportRequest) (bool, uint16) {
	hash := req.AuthHash()

	if hash == "" || !req.Header.RequestAuth {
		if s.config.RequireAuth {
			return false, protocol.ErrCodeUnauthorized
		}
		return false, 0
	}

	want := hex.EncodeToString(s.hasher.Compute(req.Header.PacketID, req.Header.Timestamp, s.config.Passphrase))
	if subtle.ConstantTimeCompare([]byte(hash), []byte(want)) != 1 {
		return false, protocol.ErrCodeForbidden
	}
	return true, 0
}

// responseAuthExt produces the auth_hash extension for responses the
// requester asked to be authenticated.
func (s *Server) responseAuthExt(h protocol.Header) map[string]interface{} {
	if !h.ResponseAuth {
		return nil
	}
	digest := s.hasher.Compute(h.PacketID, h.Timestamp, s.config.Passphrase)
	return map[string]interface{}{protocol.FieldAuthHash: hex.EncodeToString(digest)}
}

// responseHeader builds a response header correlated to the request: same
// packet id, same day selector, fresh server timestamp.
func (s *Server) responseHeader(req protocol.Header) protocol.Header {
	return protocol.Header{
		Version:      protocol.ProtocolVersion,
		PacketID:     req.PacketID,
		Day:          req.Day,
		Timestamp:    uint64(s.clock.Now().Unix()),
		AreaCode:     req.AreaCode,
		ResponseAuth: req.ResponseAuth,
	}
}

// fillResponse copies forecast data into the response header flags and tail,
// honoring the field selection flags from the request.
func fillResponse(h *protocol.Header, tail *protocol.Tail, fc *Forecast, req protocol.Header) {
	if req.Weather {
		h.Weather = true
		tail.WeatherCode = fc.WeatherCode
	}
	if req.Temperature {
		h.Temperature = true
		tail.Temperature = fc.Temperature
	}
	if req.Pop {
		h.Pop = true
		tail.Precipitation = fc.Precipitation
	}
	h.Alert = req.Alert
	h.Disaster = req.Disaster
}

func (s *Server) mapHandlerError(err error) uint16 {
	if errors.Is(err, ErrNotFound) {
		return protocol.ErrCodeNotFound
	}
	s.log.Error("Handler failed", logger.Error(err))
	return protocol.ErrCodeInternal
}

// rejectParse answers a malformed request with a Bad Request error packet
// when enough of the header survives to correlate one.
func (s *Server) rejectParse(data []byte, addr *net.UDPAddr, err error) {
	s.log.Debug("Rejected packet",
		logger.String("from", addr.String()),
		logger.Error(err))

	switch {
	case errors.Is(err, protocol.ErrChecksumMismatch):
		s.countDecodeError("checksum")
		// A corrupted packet id cannot be trusted for correlation
		return
	case errors.Is(err, protocol.ErrInsufficientData):
		s.countDecodeError("truncated")
		return
	default:
		s.countDecodeError("malformed")
	}

	h, ok := protocol.PeekHeader(data)
	if !ok {
		return
	}
	s.sendError(h, addr, protocol.ErrCodeBadRequest)
}

func (s *Server) sendError(req protocol.Header, addr *net.UDPAddr, code uint16) {
	resp := &protocol.ErrorResponse{
		Header: s.responseHeader(req),
		Code:   code,
	}
	s.log.Info("Sending error response",
		logger.String("to", addr.String()),
		logger.Int("code", int(code)))
	s.send(resp, addr, "error_response")
}

func (s *Server) send(p protocol.Packet, addr *net.UDPAddr, typeName string) {
	data, err := p.Encode(s.codec)
	if err != nil {
		s.log.Error("Failed to encode response", logger.Error(err))
		return
	}

	if _, err := s.conn.WriteToUDP(data, addr); err != nil {
		s.log.Error("Failed to send response",
			logger.String("to", addr.String()),
			logger.Error(err))
		return
	}

	if s.metrics != nil {
		s.metrics.PacketsSent.WithLabelValues(typeName).Inc()
		s.metrics.BytesSent.Add(float64(len(data)))
	}
}

func (s *Server) countReceived(typeName string) {
	if s.metrics != nil {
		s.metrics.PacketsReceived.WithLabelValues(typeName).Inc()
	}
}

func (s *Server) countDecodeError(reason string) {
	if s.metrics != nil {
		s.metrics.DecodeErrors.WithLabelValues(reason).Inc()
	}
}
