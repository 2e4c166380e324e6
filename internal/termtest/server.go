// Package termtest provides an in-process Term server for tests.
//
// The server accepts a single client, checks its registration frame and then hands every
// telegram to a Handler. Replies returned by the handler are written back in order.
// The close announcement of the current protocol generation is answered automatically.
package termtest

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/arloliu/go-thales/telegram"
)

// Handler produces the replies to one received telegram.
type Handler func(req telegram.Telegram) []telegram.Telegram

// Reply is a helper building a text telegram.
func Reply(ch telegram.Channel, s string) telegram.Telegram {
	return telegram.Telegram{Channel: ch, Payload: []byte(s)}
}

// Server is a fake Term software listening on the loopback interface.
type Server struct {
	ln       net.Listener
	protocol telegram.ProtocolVersion
	handler  Handler

	mu       sync.Mutex
	conn     net.Conn
	name     string
	received []telegram.Telegram
	goodbye  bool

	writeMu    sync.Mutex
	registered chan struct{}
	done       chan struct{}
	closeOnce  sync.Once
}

// NewServer starts a server speaking protocol. A nil handler never replies.
func NewServer(protocol telegram.ProtocolVersion, handler Handler) (*Server, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}

	s := &Server{
		ln:         ln,
		protocol:   protocol,
		handler:    handler,
		registered: make(chan struct{}),
		done:       make(chan struct{}),
	}
	go s.serve()

	return s, nil
}

// Host returns the listening IP address.
func (s *Server) Host() string {
	return s.ln.Addr().(*net.TCPAddr).IP.String()
}

// Port returns the listening port.
func (s *Server) Port() int {
	return s.ln.Addr().(*net.TCPAddr).Port
}

// WaitRegistered waits until a client registered and returns its name.
func (s *Server) WaitRegistered(timeout time.Duration) (string, error) {
	select {
	case <-s.registered:
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.name, nil
	case <-time.After(timeout):
		return "", errors.New("no registration received")
	}
}

// Send writes a telegram to the connected client.
func (s *Server) Send(ch telegram.Channel, payload []byte) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return errors.New("no client connected")
	}

	frame, err := telegram.Encode(ch, payload, s.protocol.LengthOrder())
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_, err = conn.Write(frame)

	return err
}

// SendString writes a text telegram to the connected client.
func (s *Server) SendString(ch telegram.Channel, text string) error {
	return s.Send(ch, []byte(text))
}

// Received returns a copy of all telegrams received after the registration.
func (s *Server) Received() []telegram.Telegram {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]telegram.Telegram, len(s.received))
	copy(out, s.received)

	return out
}

// ReceivedTexts returns the payloads received on ch as strings.
func (s *Server) ReceivedTexts(ch telegram.Channel) []string {
	var out []string
	for _, t := range s.Received() {
		if t.Channel == ch {
			out = append(out, string(t.Payload))
		}
	}

	return out
}

// GoodbyeReceived reports whether the client sent the goodbye telegram.
func (s *Server) GoodbyeReceived() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.goodbye
}

// DropConnection closes the client socket without any protocol exchange.
func (s *Server) DropConnection() {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
}

// Done is closed when the client connection ended.
func (s *Server) Done() <-chan struct{} {
	return s.done
}

// Close stops the listener and drops the client.
func (s *Server) Close() {
	s.closeOnce.Do(func() {
		_ = s.ln.Close()
		s.DropConnection()
	})
}

func (s *Server) serve() {
	defer close(s.done)

	conn, err := s.ln.Accept()
	if err != nil {
		return
	}
	defer conn.Close()

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	name, err := s.readRegistration(conn)
	if err != nil {
		return
	}
	s.mu.Lock()
	s.name = name
	s.mu.Unlock()
	close(s.registered)

	closeMsg := fmt.Sprintf("3,%s,0,RS", name)
	hdr := make([]byte, telegram.HeaderSize)
	for {
		t, err := telegram.Read(conn, s.protocol.LengthOrder(), hdr)
		if err != nil {
			return
		}

		s.mu.Lock()
		s.received = append(s.received, t)
		if t.Channel == telegram.ChannelGoodbye && bytes.Equal(t.Payload, []byte{0xFF, 0xFF}) {
			s.goodbye = true
		}
		s.mu.Unlock()

		if t.Channel == telegram.ChannelControl && string(t.Payload) == closeMsg {
			_ = s.SendString(telegram.ChannelControl, closeMsg+",OK")
			continue
		}

		if s.handler == nil {
			continue
		}
		for _, reply := range s.handler(t) {
			if err := s.Send(reply.Channel, reply.Payload); err != nil {
				return
			}
		}
	}
}

func (s *Server) readRegistration(r io.Reader) (string, error) {
	hdr := make([]byte, 8)
	if _, err := io.ReadFull(r, hdr); err != nil {
		return "", err
	}

	tag := s.protocol.RegistrationTag()
	if !bytes.Equal(hdr[2:], tag[:]) {
		return "", fmt.Errorf("unexpected registration tag % X", hdr[2:])
	}

	var order binary.ByteOrder = s.protocol.RegistrationOrder()
	name := make([]byte, order.Uint16(hdr[:2]))
	if _, err := io.ReadFull(r, name); err != nil {
		return "", err
	}

	return strings.TrimSpace(string(name)), nil
}
