package signal

import "github.com/scrumdeck/scrumdeck/internal/protocol"

func (ctl *Controller) handlePing(conn *WsConn) {
	ctl.sendJSON(conn, protocol.Pong{Type: protocol.KindPong})
}
