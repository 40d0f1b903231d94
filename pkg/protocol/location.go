package protocol

// LocationRequest asks the server to resolve coordinates to an area code.
// Coordinates are never stored in the fixed header; they always travel as
// latitude/longitude extension fields, so every serialized LocationRequest
// has ExFlag set.
type LocationRequest struct {
	Header    Header
	Latitude  float64
	Longitude float64

	// Extensions holds any additional extension fields beyond the
	// coordinates (nil when none).
	Extensions map[string]interface{}
}

// Type returns the wire discriminant.
func (p *LocationRequest) Type() uint8 { return TypeLocationRequest }

// Encode serializes the request.
func (p *LocationRequest) Encode(c *Codec) ([]byte, error) {
	h := p.Header
	h.Type = TypeLocationRequest

	ext := make(map[string]interface{}, len(p.Extensions)+2)
	for k, v := range p.Extensions {
		ext[k] = v
	}
	ext[FieldLatitude] = p.Latitude
	ext[FieldLongitude] = p.Longitude

	return encodePacket(c, h, nil, ext)
}

// ParseLocationRequest parses a LocationRequest from raw bytes.
func ParseLocationRequest(c *Codec, data []byte) (*LocationRequest, error) {
	h, _, ext, err := decodePacket(c, data, TypeLocationRequest, false)
	if err != nil {
		return nil, err
	}

	p := &LocationRequest{Header: h}
	if lat, ok := ext[FieldLatitude].(float64); ok {
		p.Latitude = lat
		delete(ext, FieldLatitude)
	}
	if lon, ok := ext[FieldLongitude].(float64); ok {
		p.Longitude = lon
		delete(ext, FieldLongitude)
	}
	if len(ext) > 0 {
		p.Extensions = ext
	}

	return p, nil
}

// LocationResponse answers a LocationRequest with the resolved area code,
// carried in the shared header.
type LocationResponse struct {
	Header Header

	// Extensions holds any extension fields echoed by the server (nil when
	// none).
	Extensions map[string]interface{}
}

// Type returns the wire discriminant.
func (p *LocationResponse) Type() uint8 { return TypeLocationResponse }

// AreaCode returns the resolved 20-bit area code.
func (p *LocationResponse) AreaCode() uint32 { return p.Header.AreaCode }

// Encode serializes the response.
func (p *LocationResponse) Encode(c *Codec) ([]byte, error) {
	h := p.Header
	h.Type = TypeLocationResponse
	return encodePacket(c, h, nil, p.Extensions)
}

// ParseLocationResponse parses a LocationResponse from raw bytes. The area
// code is only populated after the checksum validates.
func ParseLocationResponse(c *Codec, data []byte) (*LocationResponse, error) {
	h, _, ext, err := decodePacket(c, data, TypeLocationResponse, false)
	if err != nil {
		return nil, err
	}

	p := &LocationResponse{Header: h}
	if len(ext) > 0 {
		p.Extensions = ext
	}
	return p, nil
}

// LocationResponseEx is the extended decoding of a LocationResponse: on top
// of the area code it recovers the optional latitude/longitude/source
// extension fields some servers echo back.
type LocationResponseEx struct {
	LocationResponse

	Latitude       float64
	Longitude      float64
	HasCoordinates bool
	Source         string // "ip:port" of the reporting server, empty when absent
}

// ParseLocationResponseEx parses a LocationResponse and additionally lifts
// the known optional extensions into typed fields.
func ParseLocationResponseEx(c *Codec, data []byte) (*LocationResponseEx, error) {
	base, err := ParseLocationResponse(c, data)
	if err != nil {
		return nil, err
	}

	p := &LocationResponseEx{LocationResponse: *base}
	lat, okLat := p.Extensions[FieldLatitude].(float64)
	lon, okLon := p.Extensions[FieldLongitude].(float64)
	if okLat && okLon {
		p.Latitude = lat
		p.Longitude = lon
		p.HasCoordinates = true
		delete(p.Extensions, FieldLatitude)
		delete(p.Extensions, FieldLongitude)
	}
	if src, ok := p.Extensions[FieldSource].(string); ok {
		p.Source = src
		delete(p.Extensions, FieldSource)
	}
	if len(p.Extensions) == 0 {
		p.Extensions = nil
	}

	return p, nil
}
