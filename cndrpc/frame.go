package cndrpc

import (
	"encoding/json"
	"io"
	"sync/atomic"

	"github.com/atomicswap/cnd/lnwire"
)

// readFrame reads one control Request, framed exactly like a SWAP
// protocol message: a big-endian length prefix followed by a JSON
// lnwire.Frame whose Payload is a cndrpc.Request.
func readFrame(r io.Reader) (lnwire.Frame, error) {
	return lnwire.ReadMessage(r)
}

// writeResponse frames resp as a RESPONSE lnwire.Frame carrying id, and
// writes it to w. Framing errors are swallowed: the caller has no
// further opportunity to react beyond closing the connection, which its
// own read loop already does on the next iteration.
func writeResponse(w io.Writer, id uint32, resp Response) {
	encoded, err := json.Marshal(resp)
	if err != nil {
		encoded, _ = json.Marshal(errorResponse(err))
	}
	lnwire.WriteMessage(w, lnwire.Frame{
		Type:    lnwire.FrameResponse,
		Id:      id,
		Payload: encoded,
	})
}

// nextRequestId hands out client-side frame ids, unique per connection
// for the lifetime of the process.
var requestIdCounter uint32

func nextRequestId() uint32 {
	return atomic.AddUint32(&requestIdCounter, 1)
}
