package protocol

// QueryRequest asks for forecast data for an area. The header flags mark
// which fields the caller wants included, Day selects the forecast offset,
// and AreaCode names the region. No tail and normally no extensions.
type QueryRequest struct {
	Header Header

	Extensions map[string]interface{}
}

// Type returns the wire discriminant.
func (p *QueryRequest) Type() uint8 { return TypeQueryRequest }

// Encode serializes the request.
func (p *QueryRequest) Encode(c *Codec) ([]byte, error) {
	h := p.Header
	h.Type = TypeQueryRequest
	return encodePacket(c, h, nil, p.Extensions)
}

// ParseQueryRequest parses a QueryRequest from raw bytes.
func ParseQueryRequest(c *Codec, data []byte) (*QueryRequest, error) {
	h, _, ext, err := decodePacket(c, data, TypeQueryRequest, false)
	if err != nil {
		return nil, err
	}

	p := &QueryRequest{Header: h}
	if len(ext) > 0 {
		p.Extensions = ext
	}
	return p, nil
}

// QueryResponse answers a QueryRequest: scalar forecast data in the tail,
// alert/disaster lists as extension fields when the request flagged them.
type QueryResponse struct {
	Header Header
	Tail   Tail

	Alerts    []string
	Disasters []string

	Extensions map[string]interface{}
}

// Type returns the wire discriminant.
func (p *QueryResponse) Type() uint8 { return TypeQueryResponse }

// Encode serializes the response.
func (p *QueryResponse) Encode(c *Codec) ([]byte, error) {
	h := p.Header
	h.Type = TypeQueryResponse

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

	tail := p.Tail
	return encodePacket(c, h, &tail, ext)
}

// ParseQueryResponse parses a QueryResponse from raw bytes.
func ParseQueryResponse(c *Codec, data []byte) (*QueryResponse, error) {
	h, tail, ext, err := decodePacket(c, data, TypeQueryResponse, true)
	if err != nil {
		return nil, err
	}

	p := &QueryResponse{Header: h, Tail: tail}
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
