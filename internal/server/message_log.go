package server

import "time"

// messageLog is the append-only history of relayed messages. It is owned by
// the hub goroutine and is not safe for concurrent use.
type messageLog struct {
	entries []Message
	now     func() time.Time
}

func newMessageLog() *messageLog {
	return &messageLog{now: time.Now}
}

// append stamps msg with the next sequence number and arrival time.
func (l *messageLog) append(msg Message) Message {
	msg.Seq = uint64(len(l.entries)) + 1
	msg.ReceivedAt = l.now()
	l.entries = append(l.entries, msg)
	return msg
}

// snapshot returns the current entries. The capacity is clipped so later
// appends never write into the returned slice's backing array.
func (l *messageLog) snapshot() []Message {
	return l.entries[:len(l.entries):len(l.entries)]
}

func (l *messageLog) len() int {
	return len(l.entries)
}
