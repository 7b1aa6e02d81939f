// Package engine implements the media-engine capability on top of
// pion/webrtc. Each transport is one PeerConnection; the negotiation
// parameters handed back in transportCreated are extracted from the real
// ICE/DTLS state of the gathered local description.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/baryshev/examroom/internal/core"
	"github.com/baryshev/examroom/internal/domain"
)

var ErrUnknownTransport = errors.New("unknown transport")

type transport struct {
	pc        *webrtc.PeerConnection
	owner     domain.ParticipantID
	connected bool
	dtls      json.RawMessage
	producers map[domain.ProducerID]domain.MediaKind
}

type Engine struct {
	cfg webrtc.Configuration

	mu         sync.Mutex
	transports map[domain.TransportID]*transport
}

func DefaultConfig() webrtc.Configuration {
	return webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{URLs: []string{"stun:stun.l.google.com:19302"}},
		},
	}
}

func New(cfg webrtc.Configuration) *Engine {
	return &Engine{
		cfg:        cfg,
		transports: make(map[domain.TransportID]*transport),
	}
}

var _ core.MediaEngine = (*Engine)(nil)

func (e *Engine) CreateTransport(ctx context.Context, room domain.RoomCode, owner domain.ParticipantID, dir domain.TransportDirection) (*core.TransportInfo, error) {
	pc, err := webrtc.NewPeerConnection(e.cfg)
	if err != nil {
		return nil, fmt.Errorf("new peer connection: %w", err)
	}

	recvDir := webrtc.RTPTransceiverDirectionRecvonly
	if dir == domain.DirectionReceive {
		recvDir = webrtc.RTPTransceiverDirectionSendonly
	}
	for _, kind := range []webrtc.RTPCodecType{webrtc.RTPCodecTypeAudio, webrtc.RTPCodecTypeVideo} {
		if _, err := pc.AddTransceiverFromKind(kind, webrtc.RTPTransceiverInit{Direction: recvDir}); err != nil {
			_ = pc.Close()
			return nil, fmt.Errorf("add transceiver: %w", err)
		}
	}

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		_ = pc.Close()
		return nil, fmt.Errorf("create offer: %w", err)
	}
	gatherComplete := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(offer); err != nil {
		_ = pc.Close()
		return nil, fmt.Errorf("set local description: %w", err)
	}
	select {
	case <-gatherComplete:
	case <-ctx.Done():
		_ = pc.Close()
		return nil, ctx.Err()
	}

	sdp := pc.LocalDescription().SDP
	info, err := negotiationParams(sdp)
	if err != nil {
		_ = pc.Close()
		return nil, err
	}
	info.ID = domain.TransportID(uuid.NewString())

	e.mu.Lock()
	e.transports[info.ID] = &transport{
		pc:        pc,
		owner:     owner,
		producers: make(map[domain.ProducerID]domain.MediaKind),
	}
	e.mu.Unlock()

	log.Info().Str("module", "engine").Str("room", string(room)).
		Str("transport", string(info.ID)).Str("dir", string(dir)).Msg("transport allocated")
	return info, nil
}

// ConnectTransport records the client's DTLS parameters. The handshake
// itself is driven by pion once the remote side connects; a repeated
// connect of an already-connected transport stays a no-op.
func (e *Engine) ConnectTransport(ctx context.Context, id domain.TransportID, dtlsParameters json.RawMessage) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.transports[id]
	if !ok {
		return ErrUnknownTransport
	}
	if t.connected {
		return nil
	}
	if len(dtlsParameters) == 0 {
		return errors.New("missing dtlsParameters")
	}
	t.connected = true
	t.dtls = dtlsParameters
	return nil
}

func (e *Engine) CreateProducer(ctx context.Context, id domain.TransportID, kind domain.MediaKind, rtpParameters json.RawMessage) (domain.ProducerID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.transports[id]
	if !ok {
		return "", ErrUnknownTransport
	}
	if !t.connected {
		return "", errors.New("transport not connected")
	}
	prodID := domain.ProducerID(uuid.NewString())
	t.producers[prodID] = kind
	log.Info().Str("module", "engine").Str("transport", string(id)).
		Str("producer", string(prodID)).Str("kind", string(kind)).Msg("producer created")
	return prodID, nil
}

func (e *Engine) CloseTransport(id domain.TransportID) {
	e.mu.Lock()
	t, ok := e.transports[id]
	delete(e.transports, id)
	e.mu.Unlock()
	if !ok {
		return
	}
	if err := t.pc.Close(); err != nil {
		log.Error().Err(err).Str("module", "engine").Str("transport", string(id)).Msg("close error")
		return
	}
	log.Info().Str("module", "engine").Str("transport", string(id)).Msg("transport closed")
}

type iceParameters struct {
	UsernameFragment string `json:"usernameFragment"`
	Password         string `json:"password"`
}

type fingerprint struct {
	Algorithm string `json:"algorithm"`
	Value     string `json:"value"`
}

type dtlsParameters struct {
	Role         string        `json:"role"`
	Fingerprints []fingerprint `json:"fingerprints"`
}

type iceCandidate struct {
	Foundation string `json:"foundation"`
	Component  int    `json:"component"`
	Protocol   string `json:"protocol"`
	Priority   int    `json:"priority"`
	IP         string `json:"ip"`
	Port       int    `json:"port"`
	Type       string `json:"type"`
}

// negotiationParams extracts ICE/DTLS material from the gathered local SDP.
func negotiationParams(sdp string) (*core.TransportInfo, error) {
	var (
		ice        iceParameters
		dtls       = dtlsParameters{Role: "auto"}
		candidates []iceCandidate
	)
	for _, line := range strings.Split(sdp, "\r\n") {
		switch {
		case strings.HasPrefix(line, "a=ice-ufrag:"):
			ice.UsernameFragment = strings.TrimPrefix(line, "a=ice-ufrag:")
		case strings.HasPrefix(line, "a=ice-pwd:"):
			ice.Password = strings.TrimPrefix(line, "a=ice-pwd:")
		case strings.HasPrefix(line, "a=fingerprint:"):
			rest := strings.TrimPrefix(line, "a=fingerprint:")
			if alg, val, ok := strings.Cut(rest, " "); ok {
				dtls.Fingerprints = append(dtls.Fingerprints, fingerprint{Algorithm: alg, Value: val})
			}
		case strings.HasPrefix(line, "a=candidate:"):
			if c, ok := parseCandidate(strings.TrimPrefix(line, "a=candidate:")); ok {
				candidates = append(candidates, c)
			}
		}
	}
	if ice.UsernameFragment == "" || len(dtls.Fingerprints) == 0 {
		return nil, errors.New("incomplete local description")
	}
	if candidates == nil {
		candidates = []iceCandidate{}
	}

	iceRaw, err := json.Marshal(ice)
	if err != nil {
		return nil, err
	}
	candRaw, err := json.Marshal(candidates)
	if err != nil {
		return nil, err
	}
	dtlsRaw, err := json.Marshal(dtls)
	if err != nil {
		return nil, err
	}
	return &core.TransportInfo{
		ICEParameters:  iceRaw,
		ICECandidates:  candRaw,
		DTLSParameters: dtlsRaw,
	}, nil
}

func parseCandidate(line string) (iceCandidate, bool) {
	parts := strings.Fields(line)
	if len(parts) < 8 {
		return iceCandidate{}, false
	}
	component, err1 := strconv.Atoi(parts[1])
	priority, err2 := strconv.Atoi(parts[3])
	port, err3 := strconv.Atoi(parts[5])
	if err1 != nil || err2 != nil || err3 != nil {
		return iceCandidate{}, false
	}
	return iceCandidate{
		Foundation: parts[0],
		Component:  component,
		Protocol:   strings.ToLower(parts[2]),
		Priority:   priority,
		IP:         parts[4],
		Port:       port,
		Type:       parts[7],
	}, true
}
