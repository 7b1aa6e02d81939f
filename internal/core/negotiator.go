package core

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/baryshev/examroom/internal/domain"
)

// Transport negotiation. Engine calls may block on the media stack, so they
// run with the room lock released; on resume the participant and transport
// are re-validated before any state is committed. A participant that
// disconnected mid-call never gets a dangling Transport or Producer.

// RequestTransport allocates a media transport through the engine and
// attaches it to the requesting participant in state created.
func (r *Room) RequestTransport(ctx context.Context, engine MediaEngine, pid domain.ParticipantID, dir domain.TransportDirection) (*TransportInfo, error) {
	r.mu.Lock()
	if _, ok := r.members[pid]; !ok {
		r.mu.Unlock()
		return nil, ErrNotInRoom
	}
	r.mu.Unlock()

	info, err := engine.CreateTransport(ctx, r.code, pid, dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNegotiationFailed, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[pid]
	if !ok {
		// Disconnected while the engine was allocating; roll back.
		engine.CloseTransport(info.ID)
		return nil, ErrNotInRoom
	}
	m.transports[info.ID] = &domain.Transport{
		ID:        info.ID,
		Owner:     pid,
		Direction: dir,
		State:     domain.TransportCreated,
	}
	log.Debug().Str("module", "core.negotiator").Str("room", string(r.code)).
		Str("transport", string(info.ID)).Str("dir", string(dir)).Msg("transport created")
	return info, nil
}

// ConnectTransport finalizes the transport through the engine. A duplicate
// connect of an already-connected (or in-flight) transport is a no-op
// success so client retries stay harmless.
func (r *Room) ConnectTransport(ctx context.Context, engine MediaEngine, pid domain.ParticipantID, tid domain.TransportID, dtls []byte) error {
	r.mu.Lock()
	m, ok := r.members[pid]
	if !ok {
		r.mu.Unlock()
		return ErrNotInRoom
	}
	t, ok := m.transports[tid]
	if !ok || t.State == domain.TransportClosed {
		r.mu.Unlock()
		return ErrTransportNotFound
	}
	if t.State == domain.TransportConnected || t.State == domain.TransportConnecting {
		r.mu.Unlock()
		return nil
	}
	t.State = domain.TransportConnecting
	r.mu.Unlock()

	engineErr := engine.ConnectTransport(ctx, tid, dtls)

	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok = r.members[pid]
	if !ok {
		// Disconnect cleanup already released the engine resource.
		return ErrNotInRoom
	}
	t, ok = m.transports[tid]
	if !ok {
		return ErrTransportNotFound
	}
	if engineErr != nil {
		t.State = domain.TransportClosed
		delete(m.transports, tid)
		engine.CloseTransport(tid)
		return fmt.Errorf("%w: %v", ErrNegotiationFailed, engineErr)
	}
	t.State = domain.TransportConnected
	log.Debug().Str("module", "core.negotiator").Str("room", string(r.code)).
		Str("transport", string(tid)).Msg("transport connected")
	return nil
}

type ProduceResult struct {
	ProducerID domain.ProducerID
	Notify     []Recipient // everyone else, snapshotted at commit
}

// CreateProducer attaches a producer to a connected transport. The invariant
// that newProducer never precedes the transportConnected commit holds
// because the recipients snapshot and the producer commit share one
// critical section entered only after the connected check.
func (r *Room) CreateProducer(ctx context.Context, engine MediaEngine, pid domain.ParticipantID, tid domain.TransportID, kind domain.MediaKind, rtp []byte) (*ProduceResult, error) {
	r.mu.Lock()
	m, ok := r.members[pid]
	if !ok {
		r.mu.Unlock()
		return nil, ErrNotInRoom
	}
	t, ok := m.transports[tid]
	if !ok {
		r.mu.Unlock()
		return nil, ErrTransportNotFound
	}
	if t.State != domain.TransportConnected {
		r.mu.Unlock()
		return nil, ErrTransportNotReady
	}
	r.mu.Unlock()

	prodID, err := engine.CreateProducer(ctx, tid, kind, rtp)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNegotiationFailed, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok = r.members[pid]
	if !ok {
		return nil, ErrNotInRoom
	}
	if t, ok = m.transports[tid]; !ok || t.State != domain.TransportConnected {
		return nil, ErrTransportNotReady
	}
	m.producers[prodID] = &domain.Producer{
		ID:        prodID,
		Transport: tid,
		Kind:      kind,
		State:     domain.ProducerActive,
	}
	log.Info().Str("module", "core.negotiator").Str("room", string(r.code)).
		Str("participant", string(pid)).Str("producer", string(prodID)).
		Str("kind", string(kind)).Msg("producer created")
	return &ProduceResult{ProducerID: prodID, Notify: r.recipientsLocked(pid)}, nil
}
