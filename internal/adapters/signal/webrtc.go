package signal

import (
	"encoding/json"

	"github.com/baryshev/examroom/internal/core"
	"github.com/baryshev/examroom/internal/domain"
	"github.com/baryshev/examroom/internal/wire"
)

func (ctl *Controller) handleCreateTransport(cl *client, room *core.Room, pid domain.ParticipantID, data []byte) {
	var p wire.CreateTransport
	if err := json.Unmarshal(data, &p); err != nil {
		ctl.sendErr(cl.conn, wire.CodeMalformed, "bad createWebRtcTransport payload")
		return
	}
	dir := domain.DirectionReceive
	if p.Sender {
		dir = domain.DirectionSend
	}

	info, err := room.RequestTransport(cl.ctx, ctl.reg.Engine(), pid, dir)
	if err != nil {
		ctl.replyErr(cl.conn, err)
		return
	}
	ctl.sendJSON(cl.conn, wire.TypeTransportCreated, wire.TransportCreated{
		ID:             string(info.ID),
		ICEParameters:  info.ICEParameters,
		ICECandidates:  info.ICECandidates,
		DTLSParameters: info.DTLSParameters,
	})
}

func (ctl *Controller) handleConnectTransport(cl *client, room *core.Room, pid domain.ParticipantID, data []byte) {
	var p wire.ConnectTransport
	if err := json.Unmarshal(data, &p); err != nil || p.TransportID == "" {
		ctl.sendErr(cl.conn, wire.CodeMalformed, "bad connectTransport payload")
		return
	}

	err := room.ConnectTransport(cl.ctx, ctl.reg.Engine(), pid, domain.TransportID(p.TransportID), p.DTLSParameters)
	if err != nil {
		ctl.replyErr(cl.conn, err)
		return
	}
	ctl.sendJSON(cl.conn, wire.TypeTransportConnected, wire.TransportConnected{
		TransportID: p.TransportID,
		Connected:   true,
	})
}

func (ctl *Controller) handleProduce(cl *client, room *core.Room, pid domain.ParticipantID, data []byte) {
	var p wire.Produce
	if err := json.Unmarshal(data, &p); err != nil || p.TransportID == "" {
		ctl.sendErr(cl.conn, wire.CodeMalformed, "bad produce payload")
		return
	}
	kind, ok := domain.ParseMediaKind(p.Kind)
	if !ok {
		ctl.sendErr(cl.conn, wire.CodeMalformed, "unknown media kind: "+p.Kind)
		return
	}

	res, err := room.CreateProducer(cl.ctx, ctl.reg.Engine(), pid, domain.TransportID(p.TransportID), kind, p.RTPParameters)
	if err != nil {
		ctl.replyErr(cl.conn, err)
		return
	}
	ctl.sendJSON(cl.conn, wire.TypeProducerCreated, wire.ProducerCreated{
		ProducerID: string(res.ProducerID),
	})
	ctl.Fanout(res.Notify, wire.TypeNewProducer, wire.NewProducer{
		ProducerID:    string(res.ProducerID),
		ParticipantID: string(pid),
		Kind:          string(kind),
	})
}
