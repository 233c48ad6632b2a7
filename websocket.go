package httpcore

import (
	"bytes"
	"crypto/sha1"
	"encoding/base64"
	"net"
)

// computeWebSocketAccept implements RFC 6455 §4.2.2: concatenate the
// client's Sec-WebSocket-Key with the protocol GUID, SHA-1 hash the
// result, and base64-encode it. Only the handshake is in scope here; the
// frame format itself is out of scope for this library.
func computeWebSocketAccept(key []byte) string {
	h := sha1.New()
	h.Write(key)
	h.Write(s2b(websocketGUID))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// IsWebSocketUpgrade reports whether a request's headers ask for a
// WebSocket upgrade: Connection: Upgrade, Upgrade: websocket, and a
// Sec-WebSocket-Key. It does not look at Sec-WebSocket-Version;
// UpgradeWebSocket rejects a version other than 13. A RequestHandler calls this to decide
// whether to hand the request to UpgradeWebSocket instead of a normal
// response.
func IsWebSocketUpgrade(h *RequestHeader) bool {
	if !h.ConnectionUpgrade() {
		return false
	}
	if !bytes.EqualFold(h.Peek("Upgrade"), strWebsocket) {
		return false
	}
	return len(h.Peek("Sec-WebSocket-Key")) > 0
}

// UpgradeWebSocket builds the 101 Switching Protocols response for a
// validated upgrade request, wiring handler as the function that takes
// over the raw connection once the handshake bytes are flushed. Only the
// handshake is performed here; reading and writing WebSocket frames on
// the handed-off net.Conn is the handler's responsibility.
func UpgradeWebSocket(req *Request, handler func(net.Conn)) (*Response, error) {
	key := req.Header.Peek("Sec-WebSocket-Key")
	if len(key) == 0 {
		return nil, NewHTTPError(StatusBadRequest, "missing Sec-WebSocket-Key")
	}
	if v := req.Header.Peek("Sec-WebSocket-Version"); len(v) > 0 && !bytes.Equal(v, []byte("13")) {
		return nil, NewHTTPError(StatusBadRequest, "unsupported Sec-WebSocket-Version")
	}

	resp := AcquireResponse()
	resp.Header.SetStatusCode(StatusSwitchingProtocols)
	resp.Header.Set("Upgrade", "websocket")
	resp.Header.Set("Connection", "Upgrade")
	resp.Header.Set("Sec-WebSocket-Accept", computeWebSocketAccept(key))
	resp.SwitchToWebSocket(handler)
	return resp, nil
}

// UpgradeWebSocketSubprotocol is UpgradeWebSocket for handlers that
// negotiated one of the client's offered subprotocols; the agreed name is
// echoed back in Sec-WebSocket-Protocol.
func UpgradeWebSocketSubprotocol(req *Request, subprotocol string, handler func(net.Conn)) (*Response, error) {
	resp, err := UpgradeWebSocket(req, handler)
	if err != nil {
		return nil, err
	}
	if subprotocol != "" {
		resp.Header.Set("Sec-WebSocket-Protocol", subprotocol)
	}
	return resp, nil
}
