// Package serialin reads cadence input from a serial button box.
//
// The box sends one line per event:
//
//	L        keystroke on the left stream
//	R 120    right key released after 120 ms
package serialin

import (
	"bufio"
	"context"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"go.bug.st/serial"

	"pas-de-deux/cadence"
	"pas-de-deux/debug"
)

// Sink receives cadence input. performance.Session satisfies it.
type Sink interface {
	Keystroke(id cadence.StreamID)
	Hold(id cadence.StreamID, ms float64)
}

// Command is one parsed line
type Command struct {
	Stream cadence.StreamID
	HoldMS float64 // 0 = keystroke
}

// ParseLine decodes one line from the box
func ParseLine(line string) (Command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 || len(fields) > 2 {
		return Command{}, errors.Errorf("bad line %q", line)
	}

	var cmd Command
	switch strings.ToUpper(fields[0]) {
	case "L", "LEFT":
		cmd.Stream = cadence.Left
	case "R", "RIGHT":
		cmd.Stream = cadence.Right
	default:
		return Command{}, errors.Errorf("unknown stream %q", fields[0])
	}

	if len(fields) == 2 {
		ms, err := strconv.ParseFloat(fields[1], 64)
		if err != nil || ms <= 0 {
			return Command{}, errors.Errorf("bad hold %q", fields[1])
		}
		cmd.HoldMS = ms
	}
	return cmd, nil
}

// Feed reads lines from r until EOF, passing each command to sink.
// Bad lines are logged and skipped.
func Feed(r io.Reader, sink Sink) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		cmd, err := ParseLine(line)
		if err != nil {
			debug.LogEvery(20, "serial", "%v", err)
			continue
		}
		if cmd.HoldMS > 0 {
			sink.Hold(cmd.Stream, cmd.HoldMS)
		} else {
			sink.Keystroke(cmd.Stream)
		}
	}
	return scanner.Err()
}

// Ports lists serial devices
func Ports() ([]string, error) {
	return serial.GetPortsList()
}

// Port is an open button box
type Port struct {
	name string
	port serial.Port
}

// Open opens the named serial device at the given baud rate
func Open(name string, baud int) (*Port, error) {
	p, err := serial.Open(name, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, errors.Wrapf(err, "open serial %s", name)
	}
	debug.Log("serial", "opened %s at %d baud", name, baud)
	return &Port{name: name, port: p}, nil
}

// Run feeds the port into sink until ctx is cancelled or the port fails
// (blocking - run in goroutine)
func (p *Port) Run(ctx context.Context, sink Sink) error {
	go func() {
		<-ctx.Done()
		p.port.Close()
	}()

	err := Feed(p.port, sink)
	if ctx.Err() != nil {
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "read serial %s", p.name)
	}
	return nil
}

// Close closes the underlying serial port
func (p *Port) Close() error {
	debug.Log("serial", "closing %s", p.name)
	return p.port.Close()
}
