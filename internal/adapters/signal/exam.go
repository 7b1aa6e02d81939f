package signal

import (
	"encoding/json"

	"github.com/baryshev/examroom/internal/core"
	"github.com/baryshev/examroom/internal/domain"
	"github.com/baryshev/examroom/internal/wire"
)

func (ctl *Controller) handleStartExam(cl *client, room *core.Room, pid domain.ParticipantID, data []byte) {
	var p wire.StartExam
	if err := json.Unmarshal(data, &p); err != nil {
		ctl.sendErr(cl.conn, wire.CodeMalformed, "bad startExam payload")
		return
	}

	// The countdown belongs to the room, not to this socket: it runs on the
	// server context so a teacher disconnect cannot stall the timer.
	res, err := ctl.reg.StartExam(ctl.ctx, room, pid, p.DurationSeconds)
	if err != nil {
		ctl.replyErr(cl.conn, err)
		return
	}
	started := wire.ExamStarted{ExamID: string(res.ExamID), DurationSeconds: res.DurationSeconds}
	ctl.sendJSON(cl.conn, wire.TypeExamStarted, started)
	ctl.Fanout(res.Notify, wire.TypeExamStarted, started)
}

func (ctl *Controller) handleRecordAnswer(cl *client, room *core.Room, pid domain.ParticipantID, data []byte) {
	var p wire.RecordAnswer
	if err := json.Unmarshal(data, &p); err != nil || p.QuestionID == "" {
		ctl.sendErr(cl.conn, wire.CodeMalformed, "bad recordAnswer payload")
		return
	}

	if err := room.RecordAnswer(pid, p.QuestionID, p.Value); err != nil {
		ctl.replyErr(cl.conn, err)
		return
	}
	ctl.sendJSON(cl.conn, wire.TypeAnswerRecorded, wire.AnswerRecorded{QuestionID: p.QuestionID})
}

func (ctl *Controller) handleSubmitExam(cl *client, room *core.Room, pid domain.ParticipantID, data []byte) {
	var p wire.SubmitExam
	if err := json.Unmarshal(data, &p); err != nil {
		ctl.sendErr(cl.conn, wire.CodeMalformed, "bad submitExam payload")
		return
	}

	res, err := ctl.reg.SubmitExam(room, pid, p.Answers)
	if err != nil {
		ctl.replyErr(cl.conn, err)
		return
	}
	submitted := wire.ExamSubmitted{ExamID: string(res.ExamID)}
	ctl.sendJSON(cl.conn, wire.TypeExamSubmitted, submitted)
	if res.RoomFinal {
		ctl.Fanout(res.Notify, wire.TypeExamSubmitted, submitted)
	}
}

func (ctl *Controller) handleProctorMessage(cl *client, room *core.Room, pid domain.ParticipantID, data []byte) {
	var p wire.ProctorMessage
	if err := json.Unmarshal(data, &p); err != nil || p.Message == "" {
		ctl.sendErr(cl.conn, wire.CodeMalformed, "bad proctorMessage payload")
		return
	}

	rcpts, err := room.ProctorRecipients(pid, domain.ParticipantID(p.TargetStudentID))
	if err != nil {
		ctl.replyErr(cl.conn, err)
		return
	}
	// Never echoed to the sender: the recipient set is students only.
	ctl.Fanout(rcpts, wire.TypeProctorMessage, wire.ProctorMessageOut{
		Message: p.Message,
		From:    string(pid),
	})
}
