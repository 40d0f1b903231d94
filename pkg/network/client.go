package network

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/wipnet/wip-nexus/pkg/config"
	"github.com/wipnet/wip-nexus/pkg/logger"
	"github.com/wipnet/wip-nexus/pkg/protocol"
)

// ErrTimeout is returned when every attempt of an exchange ran out of time.
var ErrTimeout = errors.New("request timed out")

// ServerError is a decoded error packet returned by the remote server.
type ServerError struct {
	Code        uint16
	Description string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error %d: %s", e.Code, e.Description)
}

// Client performs request/response exchanges against a WIP server. Each
// exchange uses a fresh ephemeral UDP socket; responses are correlated by
// packet id and retried on timeout.
type Client struct {
	config config.ClientConfig
	log    *logger.Logger
	codec  *protocol.Codec
	idgen  *protocol.PacketIDGenerator
	hasher protocol.AuthHasher
}

// NewClient creates a new WIP client
func NewClient(cfg config.ClientConfig, log *logger.Logger) *Client {
	return &Client{
		config: cfg,
		log:    log.WithComponent("network.client"),
		codec:  protocol.DefaultCodec(),
		idgen:  protocol.NewPacketIDGenerator(),
		hasher: protocol.SHA256AuthHasher{},
	}
}

// WithCodec replaces the extension codec.
func (c *Client) WithCodec(codec *protocol.Codec) *Client {
	c.codec = codec
	return c
}

// ResolveLocation asks the server which area covers the given coordinates.
func (c *Client) ResolveLocation(ctx context.Context, lat, lon float64) (uint32, error) {
	req := &protocol.LocationRequest{
		Header:    c.requestHeader(),
		Latitude:  lat,
		Longitude: lon,
	}

	data, err := c.exchange(ctx, req, req.Header.PacketID)
	if err != nil {
		return 0, err
	}

	resp, err := protocol.ParseLocationResponse(c.codec, data)
	if err != nil {
		return 0, fmt.Errorf("bad location response: %w", err)
	}
	return resp.AreaCode(), nil
}

// QueryOptions selects which forecast fields a query asks for.
type QueryOptions struct {
	Weather     bool
	Temperature bool
	Pop         bool
	Alerts      bool
	Disasters   bool
	Day         uint8
}

// Query requests forecast data for an area.
func (c *Client) Query(ctx context.Context, areaCode uint32, opts QueryOptions) (*Forecast, error) {
	h := c.requestHeader()
	h.AreaCode = areaCode
	h.Day = opts.Day
	h.Weather = opts.Weather
	h.Temperature = opts.Temperature
	h.Pop = opts.Pop
	h.Alert = opts.Alerts
	h.Disaster = opts.Disasters

	req := &protocol.QueryRequest{Header: h}

	data, err := c.exchange(ctx, req, h.PacketID)
	if err != nil {
		return nil, err
	}

	resp, err := protocol.ParseQueryResponse(c.codec, data)
	if err != nil {
		return nil, fmt.Errorf("bad query response: %w", err)
	}

	return &Forecast{
		WeatherCode:   resp.Tail.WeatherCode,
		Temperature:   resp.Tail.Temperature,
		Precipitation: resp.Tail.Precipitation,
		Alerts:        resp.Alerts,
		Disasters:     resp.Disasters,
	}, nil
}

// Report submits an observation for an area. When the client is configured
// with a passphrase the request carries an authentication digest.
func (c *Client) Report(ctx context.Context, areaCode uint32, alerts, disasters []string) (*Forecast, error) {
	h := c.requestHeader()
	h.AreaCode = areaCode
	h.Alert = len(alerts) > 0
	h.Disaster = len(disasters) > 0

	req := &protocol.ReportRequest{
		Header:    h,
		Alerts:    alerts,
		Disasters: disasters,
	}
	if c.config.Passphrase != "" {
		req.FinalizeAuth(c.hasher, c.config.Passphrase)
	}

	data, err := c.exchange(ctx, req, h.PacketID)
	if err != nil {
		return nil, err
	}

	resp, err := protocol.ParseReportResponse(c.codec, data)
	if err != nil {
		return nil, fmt.Errorf("bad report response: %w", err)
	}

	return &Forecast{
		WeatherCode:   resp.Tail.WeatherCode,
		Temperature:   resp.Tail.Temperature,
		Precipitation: resp.Tail.Precipitation,
		Alerts:        resp.Alerts,
		Disasters:     resp.Disasters,
	}, nil
}

func (c *Client) requestHeader() protocol.Header {
	return protocol.Header{
		Version:   protocol.ProtocolVersion,
		PacketID:  c.idgen.NextID(),
		Timestamp: uint64(time.Now().Unix()),
	}
}

// exchange sends the request and waits for a matching response, retrying on
// timeout up to the configured attempt count. A decoded error packet stops
// the retry loop; the server already answered.
func (c *Client) exchange(ctx context.Context, req protocol.Packet, packetID uint16) ([]byte, error) {
	serverAddr, err := net.ResolveUDPAddr("udp", c.config.ServerAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve server address: %w", err)
	}

	payload, err := req.Encode(c.codec)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	conn, err := net.DialUDP("udp", nil, serverAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to open UDP socket: %w", err)
	}
	defer conn.Close()

	timeout := time.Duration(c.config.TimeoutMS) * time.Millisecond
	attempts := c.config.Retries + 1

	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if attempt > 0 {
			c.log.Debug("Retrying request",
				logger.Int("attempt", attempt+1),
				logger.Uint16("packet_id", packetID))
		}

		if _, err := conn.Write(payload); err != nil {
			return nil, fmt.Errorf("failed to send request: %w", err)
		}

		data, err := c.receiveMatching(ctx, conn, packetID, timeout)
		if err != nil {
			if errors.Is(err, ErrTimeout) {
				continue
			}
			return nil, err
		}
		return data, nil
	}

	return nil, fmt.Errorf("%w after %d attempts", ErrTimeout, attempts)
}

// receiveMatching reads datagrams until one carries the expected packet id
// or the per-try deadline expires. Stray datagrams from earlier retries are
// skipped, not fatal.
func (c *Client) receiveMatching(ctx context.Context, conn *net.UDPConn, packetID uint16, timeout time.Duration) ([]byte, error) {
	deadline := time.Now().Add(timeout)
	buffer := make([]byte, 4096)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := conn.SetReadDeadline(deadline); err != nil {
			return nil, fmt.Errorf("failed to set read deadline: %w", err)
		}

		n, err := conn.Read(buffer)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				return nil, ErrTimeout
			}
			return nil, fmt.Errorf("failed to read response: %w", err)
		}

		data := make([]byte, n)
		copy(data, buffer[:n])

		h, ok := protocol.PeekHeader(data)
		if !ok || h.PacketID != packetID {
			c.log.Debug("Skipping unmatched datagram",
				logger.Int("size", n))
			continue
		}

		typ, err := protocol.PeekType(data)
		if err != nil {
			continue
		}
		if typ == protocol.TypeErrorResponse {
			errResp, err := protocol.ParseErrorResponse(c.codec, data)
			if err != nil {
				return nil, fmt.Errorf("bad error response: %w", err)
			}
			return nil, &ServerError{Code: errResp.Code, Description: errResp.Description()}
		}

		return data, nil
	}
}
