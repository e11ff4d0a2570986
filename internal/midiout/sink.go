package midiout

import (
	"fmt"
	"sync"
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

// Sink accepts short messages tagged with a logical port.
type Sink interface {
	Send(port int, msg midi.Message) error
}

// PortSink sends to gomidi output ports, opening each port on first use.
// A driver must be registered by the program, e.g. by importing rtmididrv.
type PortSink struct {
	mu      sync.Mutex
	ports   map[int]drivers.Out
	senders map[int]func(midi.Message) error
}

func NewPortSink() *PortSink {
	return &PortSink{
		ports:   make(map[int]drivers.Out),
		senders: make(map[int]func(midi.Message) error),
	}
}

func (s *PortSink) Send(port int, msg midi.Message) error {
	send, err := s.sender(port)
	if err != nil {
		return err
	}
	if err := send(msg); err != nil {
		return fault.Wrap(err, fmsg.With(fmt.Sprintf("send to port %d", port)))
	}
	return nil
}

// Open opens port without sending anything.
func (s *PortSink) Open(port int) error {
	_, err := s.sender(port)
	return err
}

func (s *PortSink) sender(port int) (func(midi.Message) error, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if send, ok := s.senders[port]; ok {
		return send, nil
	}
	out, err := midi.OutPort(port)
	if err != nil {
		return nil, fault.Wrap(err, fmsg.With(fmt.Sprintf("open output port %d", port)), ftag.With(ftag.NotFound))
	}
	send, err := midi.SendTo(out)
	if err != nil {
		return nil, fault.Wrap(err, fmsg.With(fmt.Sprintf("connect output port %d", port)))
	}
	s.ports[port] = out
	s.senders[port] = send
	return send, nil
}

// Close closes every opened port. The driver itself is left to the program.
func (s *PortSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var first error
	for port, out := range s.ports {
		if err := out.Close(); err != nil && first == nil {
			first = fault.Wrap(err, fmsg.With(fmt.Sprintf("close output port %d", port)))
		}
	}
	s.ports = make(map[int]drivers.Out)
	s.senders = make(map[int]func(midi.Message) error)
	return first
}

type PortInfo struct {
	Number int
	Name   string
}

func ListOutPorts() []PortInfo {
	outs := midi.GetOutPorts()
	infos := make([]PortInfo, 0, len(outs))
	for _, out := range outs {
		infos = append(infos, PortInfo{Number: out.Number(), Name: out.String()})
	}
	return infos
}

// Recorded is one message seen by a Recorder.
type Recorded struct {
	At   time.Duration
	Port int
	Msg  midi.Message
}

// Recorder keeps every message in memory. Now, when set, stamps each
// message; Notify, when set, receives a copy without blocking.
type Recorder struct {
	Now    func() time.Duration
	Notify chan Recorded
	Fail   error

	mu   sync.Mutex
	msgs []Recorded
}

func (r *Recorder) Send(port int, msg midi.Message) error {
	rec := Recorded{Port: port, Msg: append(midi.Message(nil), msg...)}
	if r.Now != nil {
		rec.At = r.Now()
	}
	r.mu.Lock()
	r.msgs = append(r.msgs, rec)
	fail := r.Fail
	r.mu.Unlock()
	if r.Notify != nil {
		select {
		case r.Notify <- rec:
		default:
		}
	}
	return fail
}

func (r *Recorder) Messages() []Recorded {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Recorded(nil), r.msgs...)
}

func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.msgs)
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	r.msgs = nil
	r.mu.Unlock()
}
