package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/baryshev/examroom/internal/domain"
	"github.com/baryshev/examroom/internal/wire"
)

func (ctl *Controller) handleJoinRoom(cl *client, data []byte) {
	if _, _, joined := cl.session(); joined {
		ctl.sendErr(cl.conn, wire.CodeMalformed, "already in a room")
		return
	}
	if !ctl.limiter.Allow(cl.key) {
		ctl.sendErr(cl.conn, wire.CodeMalformed, "too many join attempts")
		return
	}

	var p wire.JoinRoom
	if err := json.Unmarshal(data, &p); err != nil {
		ctl.sendErr(cl.conn, wire.CodeMalformed, "bad joinRoom payload")
		return
	}
	code, err := domain.ParseRoomCode(p.Room)
	if err != nil {
		ctl.sendErr(cl.conn, wire.CodeMalformed, err.Error())
		return
	}

	room, res, err := ctl.reg.Join(code, p.Username, p.Role, cl.conn)
	if err != nil {
		ctl.replyErr(cl.conn, err)
		return
	}
	cl.bind(room, res.Participant.ID)

	if res.Replaced != nil {
		// Teacher reconnection: the old identity leaves before the new one
		// is announced.
		log.Info().Str("module", "signal").Str("room", string(code)).
			Str("old", string(res.Replaced.ID)).Msg("teacher replaced")
		ctl.Fanout(res.Notify, wire.TypeUserLeft, wire.UserLeft{UserID: string(res.Replaced.ID)})
		if res.ReplacedConn != nil {
			res.ReplacedConn.Close()
		}
	}

	ctl.sendJSON(cl.conn, wire.TypeRoomJoined, wire.RoomJoined{
		RoomID:       string(code),
		Participants: res.Roster,
		Exam:         res.Exam,
	})
	ctl.Fanout(res.Notify, wire.TypeUserJoined, wire.UserJoined{
		ID:   string(res.Participant.ID),
		Name: res.Participant.Name,
		Role: string(res.Participant.Role),
	})
}
