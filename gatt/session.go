// Copyright © 2016 Geoff Holden <geoff@geoffholden.com>

package gatt

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/geoffholden/mitemp/data"
	"github.com/geoffholden/mitemp/sensors"
	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
)

type State int

const (
	Disconnected State = iota
	Connecting
	Writing
	AwaitingNotification
	Disconnecting
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Writing:
		return "writing"
	case AwaitingNotification:
		return "awaiting notification"
	case Disconnecting:
		return "disconnecting"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// StepError records the state a session attempt failed in.
type StepError struct {
	State State
	Err   error
}

func (e *StepError) Error() string {
	return e.State.String() + ": " + e.Err.Error()
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Retryable reports whether a failed attempt should be repeated: failures to
// connect and undecodable notifications are, anything after a successful
// connect is not.
func Retryable(err error) bool {
	if errors.Is(err, ErrClosed) {
		return false
	}
	if errors.Is(err, sensors.ErrMalformed) {
		return true
	}
	var step *StepError
	return errors.As(err, &step) && step.State == Connecting
}

// Spawner starts an interactive program and returns its terminal.
type Spawner func(name string, args ...string) (io.ReadWriteCloser, error)

var (
	connected = regexp.MustCompile(`Connection successful`)
	failed    = regexp.MustCompile(`(?i)error[^\r\n]*`)
	written   = regexp.MustCompile(`Characteristic value was written successfully`)
	eol       = regexp.MustCompile(`\r?\n`)
)

func init() {
	RegisterTransport(data.TransportSession, func(cfg data.DeviceConfig) (Transport, error) {
		return NewSession(cfg, spawnPTY)
	})
}

// Session owns one interactive gatttool process for the lifetime of a
// device. It is not safe for concurrent use.
type Session struct {
	cfg          data.DeviceConfig
	proc         io.ReadWriteCloser
	exp          *Expecter
	state        State
	timeout      time.Duration
	notification *regexp.Regexp
}

func NewSession(cfg data.DeviceConfig, spawn Spawner) (*Session, error) {
	name, args, err := command(cfg)
	if err != nil {
		return nil, err
	}
	args = append(args, "-b", cfg.MAC, "-i", cfg.Adapter, "-I")

	jww.DEBUG.Println("Starting", name, strings.Join(args, " "))
	proc, err := spawn(name, args...)
	if err != nil {
		return nil, err
	}
	return &Session{
		cfg:          cfg,
		proc:         proc,
		exp:          NewExpecter(proc, proc),
		state:        Disconnected,
		timeout:      cfg.TimeoutDuration(),
		notification: regexp.MustCompile(`Notification handle = ` + regexp.QuoteMeta(cfg.Handles.Notification) + ` value: `),
	}, nil
}

func (s *Session) State() State {
	return s.state
}

// Acquire runs up to Retries+1 attempts of the connect, write, notify,
// disconnect sequence.
func (s *Session) Acquire(ctx context.Context) (data.Reading, error) {
	res := Retry(ctx, s.cfg.Retries+1, Retryable, func(ctx context.Context, attempt int) (data.Reading, error) {
		reading, err := s.attempt(ctx)
		if err != nil {
			jww.WARN.Printf("%s: attempt %d of %d failed: %v", s.cfg.MAC, attempt, s.cfg.Retries+1, err)
		}
		return reading, err
	})
	if res.Err != nil {
		return data.Reading{}, errors.Wrapf(res.Err, "%s after %d attempts", s.cfg.MAC, res.Attempts)
	}
	return res.Value, nil
}

func (s *Session) attempt(ctx context.Context) (data.Reading, error) {
	s.exp.Discard()

	s.state = Connecting
	if _, err := s.step(ctx, "connect", connected); err != nil {
		return data.Reading{}, err
	}

	s.state = Writing
	if _, err := s.step(ctx, fmt.Sprintf("char-write-req %s %s", s.cfg.Handles.Notify, s.cfg.Handles.NotifyValue), written); err != nil {
		return data.Reading{}, err
	}

	s.state = AwaitingNotification
	if _, err := s.step(ctx, "", s.notification); err != nil {
		return data.Reading{}, err
	}
	m, err := s.exp.Expect(ctx, s.timeout, eol)
	if err != nil {
		s.disconnect()
		return data.Reading{}, &StepError{State: AwaitingNotification, Err: err}
	}

	s.disconnect()
	return sensors.ParsePayload(s.cfg.MAC, m.Before)
}

// step sends cmd, when not empty, and waits for want or an error line. Any
// failure leaves the session disconnected.
func (s *Session) step(ctx context.Context, cmd string, want *regexp.Regexp) (Match, error) {
	if cmd != "" {
		if err := s.exp.Send(cmd); err != nil {
			state := s.state
			s.state = Disconnected
			return Match{}, &StepError{State: state, Err: err}
		}
	}
	m, err := s.exp.Expect(ctx, s.timeout, want, failed)
	if err == nil && m.Index != 0 {
		err = errors.Wrap(ErrUnexpected, strings.TrimSpace(m.Text))
	}
	if err != nil {
		state := s.state
		s.disconnect()
		return m, &StepError{State: state, Err: err}
	}
	return m, nil
}

func (s *Session) disconnect() {
	s.state = Disconnecting
	if err := s.exp.Send("disconnect"); err != nil {
		jww.DEBUG.Println(err)
	}
	s.state = Disconnected
}

// Close ends the gatttool process.
func (s *Session) Close() error {
	if err := s.exp.Send("exit"); err != nil {
		jww.DEBUG.Println(err)
	}
	s.state = Disconnected
	return s.proc.Close()
}
