package core_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/baryshev/examroom/internal/core"
	"github.com/baryshev/examroom/internal/core/mocks"
	"github.com/baryshev/examroom/internal/domain"
)

var dtlsStub = json.RawMessage(`{"role":"client","fingerprints":[]}`)

func transportInfo(id string) *core.TransportInfo {
	return &core.TransportInfo{
		ID:             domain.TransportID(id),
		ICEParameters:  json.RawMessage(`{}`),
		ICECandidates:  json.RawMessage(`[]`),
		DTLSParameters: json.RawMessage(`{}`),
	}
}

func joinStudent(t *testing.T, reg *core.Registry, code domain.RoomCode, name string) (*core.Room, domain.ParticipantID) {
	t.Helper()
	room, res, err := reg.Join(code, name, "student", &fakeConn{})
	require.NoError(t, err)
	return room, res.Participant.ID
}

func TestNegotiationHappyPath(t *testing.T) {
	ctrl := gomock.NewController(t)
	eng := mocks.NewMockMediaEngine(ctrl)
	reg := core.NewRegistry(eng, &fakeSink{}, core.Options{})
	room, alice := joinStudent(t, reg, "EXAM001", "alice")
	_, teacherRes, err := reg.Join("EXAM001", "t1", "teacher", &fakeConn{})
	require.NoError(t, err)

	ctx := context.Background()
	eng.EXPECT().CreateTransport(gomock.Any(), domain.RoomCode("EXAM001"), alice, domain.DirectionSend).
		Return(transportInfo("tr-1"), nil)
	eng.EXPECT().ConnectTransport(gomock.Any(), domain.TransportID("tr-1"), gomock.Any()).Return(nil)
	eng.EXPECT().CreateProducer(gomock.Any(), domain.TransportID("tr-1"), domain.MediaAudio, gomock.Any()).
		Return(domain.ProducerID("prod-1"), nil)

	info, err := room.RequestTransport(ctx, eng, alice, domain.DirectionSend)
	require.NoError(t, err)
	assert.Equal(t, domain.TransportID("tr-1"), info.ID)

	require.NoError(t, room.ConnectTransport(ctx, eng, alice, "tr-1", dtlsStub))

	res, err := room.CreateProducer(ctx, eng, alice, "tr-1", domain.MediaAudio, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.ProducerID("prod-1"), res.ProducerID)
	// newProducer reaches everyone but the producing student.
	require.Len(t, res.Notify, 1)
	assert.Equal(t, teacherRes.Participant.ID, res.Notify[0].ID)
}

func TestProduceBeforeConnectFails(t *testing.T) {
	ctrl := gomock.NewController(t)
	eng := mocks.NewMockMediaEngine(ctrl)
	reg := core.NewRegistry(eng, &fakeSink{}, core.Options{})
	room, alice := joinStudent(t, reg, "EXAM001", "alice")

	eng.EXPECT().CreateTransport(gomock.Any(), gomock.Any(), alice, gomock.Any()).
		Return(transportInfo("tr-1"), nil)

	_, err := room.RequestTransport(context.Background(), eng, alice, domain.DirectionSend)
	require.NoError(t, err)

	// No engine CreateProducer expectation: the call must not reach it.
	_, err = room.CreateProducer(context.Background(), eng, alice, "tr-1", domain.MediaVideo, nil)
	assert.ErrorIs(t, err, core.ErrTransportNotReady)
}

func TestConnectTransportIdempotent(t *testing.T) {
	ctrl := gomock.NewController(t)
	eng := mocks.NewMockMediaEngine(ctrl)
	reg := core.NewRegistry(eng, &fakeSink{}, core.Options{})
	room, alice := joinStudent(t, reg, "EXAM001", "alice")

	eng.EXPECT().CreateTransport(gomock.Any(), gomock.Any(), alice, gomock.Any()).
		Return(transportInfo("tr-1"), nil)
	// A duplicate connect must not hit the engine a second time.
	eng.EXPECT().ConnectTransport(gomock.Any(), domain.TransportID("tr-1"), gomock.Any()).
		Return(nil).Times(1)

	ctx := context.Background()
	_, err := room.RequestTransport(ctx, eng, alice, domain.DirectionSend)
	require.NoError(t, err)

	require.NoError(t, room.ConnectTransport(ctx, eng, alice, "tr-1", dtlsStub))
	require.NoError(t, room.ConnectTransport(ctx, eng, alice, "tr-1", dtlsStub))
}

func TestConnectFailureRollsBackTransport(t *testing.T) {
	ctrl := gomock.NewController(t)
	eng := mocks.NewMockMediaEngine(ctrl)
	reg := core.NewRegistry(eng, &fakeSink{}, core.Options{})
	room, alice := joinStudent(t, reg, "EXAM001", "alice")

	eng.EXPECT().CreateTransport(gomock.Any(), gomock.Any(), alice, gomock.Any()).
		Return(transportInfo("tr-1"), nil)
	eng.EXPECT().ConnectTransport(gomock.Any(), domain.TransportID("tr-1"), gomock.Any()).
		Return(assert.AnError)
	eng.EXPECT().CloseTransport(domain.TransportID("tr-1"))

	ctx := context.Background()
	_, err := room.RequestTransport(ctx, eng, alice, domain.DirectionSend)
	require.NoError(t, err)

	err = room.ConnectTransport(ctx, eng, alice, "tr-1", dtlsStub)
	assert.ErrorIs(t, err, core.ErrNegotiationFailed)

	// The transport is gone; another connect cannot resurrect it.
	err = room.ConnectTransport(ctx, eng, alice, "tr-1", dtlsStub)
	assert.ErrorIs(t, err, core.ErrTransportNotFound)
}

func TestDisconnectDuringAllocationLeavesNoTransport(t *testing.T) {
	ctrl := gomock.NewController(t)
	eng := mocks.NewMockMediaEngine(ctrl)
	reg := core.NewRegistry(eng, &fakeSink{}, core.Options{})
	room, alice := joinStudent(t, reg, "EXAM001", "alice")

	// The participant disconnects while the engine is still allocating; the
	// freshly created engine transport must be rolled back.
	eng.EXPECT().CreateTransport(gomock.Any(), gomock.Any(), alice, gomock.Any()).
		DoAndReturn(func(context.Context, domain.RoomCode, domain.ParticipantID, domain.TransportDirection) (*core.TransportInfo, error) {
			reg.Leave(room, alice)
			return transportInfo("tr-1"), nil
		})
	eng.EXPECT().CloseTransport(domain.TransportID("tr-1"))

	_, err := room.RequestTransport(context.Background(), eng, alice, domain.DirectionSend)
	assert.ErrorIs(t, err, core.ErrNotInRoom)
	assert.Equal(t, 0, room.MemberCount())
}

func TestDisconnectClosesOwnedTransports(t *testing.T) {
	ctrl := gomock.NewController(t)
	eng := mocks.NewMockMediaEngine(ctrl)
	reg := core.NewRegistry(eng, &fakeSink{}, core.Options{})
	room, alice := joinStudent(t, reg, "EXAM001", "alice")

	eng.EXPECT().CreateTransport(gomock.Any(), gomock.Any(), alice, gomock.Any()).
		Return(transportInfo("tr-1"), nil)
	eng.EXPECT().CloseTransport(domain.TransportID("tr-1"))

	_, err := room.RequestTransport(context.Background(), eng, alice, domain.DirectionSend)
	require.NoError(t, err)

	// Disconnect after createWebRtcTransport, before connectTransport.
	left := reg.Leave(room, alice)
	require.True(t, left.Found)
	assert.Equal(t, []domain.TransportID{"tr-1"}, left.Transports)
}
