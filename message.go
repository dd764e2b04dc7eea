package mps

import bytesize "github.com/inhies/go-bytesize"

// MessageType enumerates the kinds of message a client may receive.
type MessageType int

const (
	MessageTypeGCStart MessageType = iota
	MessageTypeGC
	MessageTypeFinalization
)

func (mt MessageType) String() string {
	switch mt {
	case MessageTypeGCStart:
		return "gcStart"
	case MessageTypeGC:
		return "gc"
	case MessageTypeFinalization:
		return "finalization"
	default:
		return "?"
	}
}

// Message is a queued (start|finished|finalization) record.
type Message struct {
	Type MessageType
	// gcStart
	Why TraceStartWhy
	// gc
	LiveSize         uintptr
	CondemnedSize    uintptr
	NotCondemnedSize uintptr
	// finalization
	FinalizedObject Addr

	clock int64
}

// String renders the message using human-readable sizes via go-bytesize.
func (m Message) String() string {
	switch m.Type {
	case MessageTypeGCStart:
		return "gcStart: " + string(m.Why)
	case MessageTypeGC:
		return "gc: live=" + bytesize.New(float64(m.LiveSize)).String() +
			" condemned=" + bytesize.New(float64(m.CondemnedSize)).String() +
			" notCondemned=" + bytesize.New(float64(m.NotCondemnedSize)).String()
	case MessageTypeFinalization:
		return "finalization"
	default:
		return "?"
	}
}

// MessageQueue is the client-pollable queue of messages
// messageQueueType / messageGet / messageDiscard.
type MessageQueue struct {
	enabled [3]bool
	queue   []Message
}

// MessageTypeEnable enables delivery of a given message type; disabled
// types are dropped rather than queued.
func (q *MessageQueue) MessageTypeEnable(mt MessageType) {
	q.enabled[mt] = true
}

func (q *MessageQueue) post(m Message) {
	if !q.enabled[m.Type] {
		return
	}
	q.queue = append(q.queue, m)
}

func (q *MessageQueue) postGCStart(why TraceStartWhy) {
	q.post(Message{Type: MessageTypeGCStart, Why: why})
}

func (q *MessageQueue) postGC(stats TraceStats) {
	q.post(Message{
		Type:             MessageTypeGC,
		CondemnedSize:    stats.CondemnedSize,
		NotCondemnedSize: stats.NotCondemnedSize,
		LiveSize:         stats.PreservedInPlaceSize,
	})
}

func (q *MessageQueue) postFinalization(obj Addr) {
	q.post(Message{Type: MessageTypeFinalization, FinalizedObject: obj})
}

// MessageGet pops the oldest queued message, if any.
func (q *MessageQueue) MessageGet() (Message, bool) {
	if len(q.queue) == 0 {
		return Message{}, false
	}
	m := q.queue[0]
	q.queue = q.queue[1:]
	return m, true
}

// MessageDiscard drops the oldest queued message without returning it.
func (q *MessageQueue) MessageDiscard() {
	if len(q.queue) > 0 {
		q.queue = q.queue[1:]
	}
}

// Pending reports how many messages are queued.
func (q *MessageQueue) Pending() int { return len(q.queue) }
