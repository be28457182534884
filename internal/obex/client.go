package obex

import (
	"fmt"
)

// Client is a minimal OBEX client able to CONNECT, PUT and DISCONNECT. It
// plays the message server side of a notification connection.
type Client struct {
	conn      Conn
	maxPacket int
	connID    uint32
	hasConnID bool
}

// NewClient wraps conn. The packet size is bounded by the transport until
// the server announces its own limit in the CONNECT response.
func NewClient(conn Conn) *Client {
	return &Client{conn: conn, maxPacket: conn.MaxPacketSize()}
}

// Connect sends CONNECT with an optional Target header and returns the
// response headers.
func (c *Client) Connect(target []byte) (Headers, error) {
	var hdrs Headers
	if len(target) > 0 {
		hdrs = append(hdrs, BytesHeader(HeaderTarget, target))
	}
	resp, err := c.roundTrip(Packet{Code: OpConnect, Prefix: ConnectPrefix(uint16(c.conn.MaxPacketSize())), Headers: hdrs})
	if err != nil {
		return nil, err
	}
	if ResponseCode(resp.Code) != RespSuccess {
		return nil, responseError{op: OpConnect, code: ResponseCode(resp.Code)}
	}
	if n, ok := ConnectMaxPacket(resp.Prefix); ok && int(n) < c.maxPacket && n >= MinPacketSize {
		c.maxPacket = int(n)
	}
	if id, ok := resp.Headers.Uint32(HeaderConnectionID); ok {
		c.connID, c.hasConnID = id, true
	}
	return resp.Headers, nil
}

// Put sends hdrs followed by body, splitting the body across as many
// packets as the negotiated packet size requires.
func (c *Client) Put(hdrs Headers, body []byte) error {
	first := hdrs
	if c.hasConnID {
		first = append(Headers{Uint32Header(HeaderConnectionID, c.connID)}, hdrs...)
	}
	overhead := packetPrefixLen
	for _, h := range first {
		overhead += headerSize(h)
	}
	for sent := false; !sent || len(body) > 0; sent = true {
		pkt := Packet{Code: OpPut}
		room := c.maxPacket - packetPrefixLen - 3
		if !sent {
			pkt.Headers = append(pkt.Headers, first...)
			room = c.maxPacket - overhead - 3
		}
		if room <= 0 {
			return fmt.Errorf("%w: headers do not fit in %d byte packets", ErrPacketTooBig, c.maxPacket)
		}
		chunk := body
		if len(chunk) > room {
			chunk = body[:room]
		}
		body = body[len(chunk):]
		if len(body) == 0 {
			pkt.Code = OpPutFinal
			pkt.Headers = append(pkt.Headers, BytesHeader(HeaderEndOfBody, chunk))
		} else {
			pkt.Headers = append(pkt.Headers, BytesHeader(HeaderBody, chunk))
		}
		resp, err := c.roundTrip(pkt)
		if err != nil {
			return err
		}
		want := RespContinue
		if pkt.Code == OpPutFinal {
			want = RespSuccess
		}
		if ResponseCode(resp.Code) != want {
			return responseError{op: pkt.Code, code: ResponseCode(resp.Code)}
		}
	}
	return nil
}

// Disconnect sends DISCONNECT. The connection stays open.
func (c *Client) Disconnect() error {
	var hdrs Headers
	if c.hasConnID {
		hdrs = Headers{Uint32Header(HeaderConnectionID, c.connID)}
	}
	resp, err := c.roundTrip(Packet{Code: OpDisconnect, Headers: hdrs})
	if err != nil {
		return err
	}
	if ResponseCode(resp.Code) != RespSuccess {
		return responseError{op: OpDisconnect, code: ResponseCode(resp.Code)}
	}
	c.hasConnID = false
	return nil
}

// Close closes the underlying connection.
func (c *Client) Close() error { return c.conn.Close() }

func (c *Client) roundTrip(p Packet) (Packet, error) {
	b, err := p.Encode()
	if err != nil {
		return Packet{}, err
	}
	if err := c.conn.WritePacket(b); err != nil {
		return Packet{}, fmt.Errorf("obex write: %w", err)
	}
	rb, err := c.conn.ReadPacket()
	if err != nil {
		return Packet{}, fmt.Errorf("obex read: %w", err)
	}
	return DecodeResponse(rb, p.Code)
}
