package protocol

import (
	"encoding/hex"
)

// ReportRequest carries a sensor or disaster observation from an edge node.
// Observed alert/disaster lists travel as extension fields; the header flags
// mark which kinds of data the report carries. When authentication is
// enabled, FinalizeAuth stores the auth digest as the auth_hash extension
// and sets the request_auth header bit.
type ReportRequest struct {
	Header Header

	Alerts    []string
	Disasters []string

	Extensions map[string]interface{}
}

// Type returns the wire discriminant.
func (p *ReportRequest) Type() uint8 { return TypeReportRequest }

// FinalizeAuth computes the authentication digest over (packet id,
// timestamp, passphrase), stores it hex-encoded as the auth_hash extension
// field, and sets the request_auth marker. Call it after PacketID and
// Timestamp are final and before Encode.
func (p *ReportRequest) FinalizeAuth(hasher AuthHasher, passphrase string) {
	digest := hasher.Compute(p.Header.PacketID, p.Header.Timestamp, passphrase)

	if p.Extensions == nil {
		p.Extensions = make(map[string]interface{}, 1)
	}
	p.Extensions[FieldAuthHash] = hex.EncodeToString(digest)
	p.Header.RequestAuth = true
}

// AuthHash returns the hex-encoded authentication digest, or "" when the
// request is unauthenticated.
func (p *ReportRequest) AuthHash() string {
	s, _ := p.Extensions[FieldAuthHash].(string)
	return s
}

// Encode serializes the request.
func (p *ReportRequest) Encode(c *Codec) ([]byte, error) {
	h := p.Header
	h.Type = TypeReportRequest

	ext := make(map[string]interface{}, len(p.Extensions)+2)
	for k, v := range p.Extensions {
		ext[k] = v
	}
	if len(p.Alerts) > 0 {
		ext[FieldAlert] = p.Alerts
	}
	if len(p.Disasters) > 0 {
		ext[FieldDisaster] = p.Disasters
	}

	return encodePacket(c, h, nil, ext)
}

// ParseReportRequest parses a ReportRequest from raw bytes.
func ParseReportRequest(c *Codec, data []byte) (*ReportRequest, error) {
	h, _, ext, err := decodePacket(c, data, TypeReportRequest, false)
	if err != nil {
		return nil, err
	}

	p := &ReportRequest{Header: h}
	if alerts, ok := ext[FieldAlert].([]string); ok {
		p.Alerts = alerts
		delete(ext, FieldAlert)
	}
	if disasters, ok := ext[FieldDisaster].([]string); ok {
		p.Disasters = disasters
		delete(ext, FieldDisaster)
	}
	if len(ext) > 0 {
		p.Extensions = ext
	}

	return p, nil
}

// ReportResponse acknowledges a ReportRequest. It shares the Query response
// tail shape and may echo alert/disaster lists plus a source extension
// naming the server that accepted the report.
type ReportResponse struct {
	Header Header
	Tail   Tail

	Alerts    []string
	Disasters []string
	Source    string // "ip:port", empty when absent

	Extensions map[string]interface{}
}

// Type returns the wire discriminant.
func (p *ReportResponse) Type() uint8 { return TypeReportResponse }

// Encode serializes the response.
func (p *ReportResponse) Encode(c *Codec) ([]byte, error) {
	h := p.Header
	h.Type = TypeReportResponse

	ext := make(map[string]interface{}, len(p.Extensions)+3)
	for k, v := range p.Extensions {
		ext[k] = v
	}
	if len(p.Alerts) > 0 {
		ext[FieldAlert] = p.Alerts
	}
	if len(p.Disasters) > 0 {
		ext[FieldDisaster] = p.Disasters
	}
	if p.Source != "" {
		ext[FieldSource] = p.Source
	}

	tail := p.Tail
	return encodePacket(c, h, &tail, ext)
}

// ParseReportResponse parses a ReportResponse from raw bytes.
func ParseReportResponse(c *Codec, data []byte) (*ReportResponse, error) {
	h, tail, ext, err := decodePacket(c, data, TypeReportResponse, true)
	if err != nil {
		return nil, err
	}

	p := &ReportResponse{Header: h, Tail: tail}
	if alerts, ok := ext[FieldAlert].([]string); ok {
		p.Alerts = alerts
		delete(ext, FieldAlert)
	}
	if disasters, ok := ext[FieldDisaster].([]string); ok {
		p.Disasters = disasters
		delete(ext, FieldDisaster)
	}
	if src, ok := ext[FieldSource].(string); ok {
		p.Source = src
		delete(ext, FieldSource)
	}
	if len(ext) > 0 {
		p.Extensions = ext
	}

	return p, nil
}
