package midi

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // Register MIDI driver

	"pas-de-deux/debug"
)

// DeviceEvent is emitted when controllers connect/disconnect
type DeviceEvent struct {
	Type       DeviceEventType
	Controller Controller
	ID         string
}

type DeviceEventType int

const (
	DeviceConnected DeviceEventType = iota
	DeviceDisconnected
)

// portTimeout bounds a port scan (CoreMIDI can hang)
const portTimeout = 3 * time.Second

// ErrPortsTimeout is returned when the MIDI driver does not answer
var ErrPortsTimeout = errors.New("midi port scan timed out")

// Ports lists input and output port names
func Ports() (ins, outs []string, err error) {
	inPorts, outPorts, err := scanPorts()
	if err != nil {
		return nil, nil, err
	}
	for _, p := range inPorts {
		ins = append(ins, p.String())
	}
	for _, p := range outPorts {
		outs = append(outs, p.String())
	}
	return ins, outs, nil
}

func scanPorts() ([]drivers.In, []drivers.Out, error) {
	type portsResult struct {
		inPorts  []drivers.In
		outPorts []drivers.Out
	}

	ch := make(chan portsResult, 1)
	go func() {
		ch <- portsResult{inPorts: gomidi.GetInPorts(), outPorts: gomidi.GetOutPorts()}
	}()

	select {
	case result := <-ch:
		return result.inPorts, result.outPorts, nil
	case <-time.After(portTimeout):
		// User needs to run: sudo killall coreaudiod midiserver
		return nil, nil, ErrPortsTimeout
	}
}

// DeviceManager handles hot-plug detection of MIDI keyboards
type DeviceManager struct {
	controllers map[string]Controller
	mu          sync.RWMutex
	events      chan DeviceEvent
	pollRate    time.Duration

	// Port name filters (substring, case-insensitive). Empty = every input.
	filters []string
	// Output port we drive ourselves, never treated as an input
	skip string
}

// NewDeviceManager creates a device manager watching ports matching filters
func NewDeviceManager(filters []string, skip string) *DeviceManager {
	return &DeviceManager{
		controllers: make(map[string]Controller),
		events:      make(chan DeviceEvent, 16),
		pollRate:    time.Second,
		filters:     filters,
		skip:        skip,
	}
}

// Events returns a channel of device connect/disconnect events
func (dm *DeviceManager) Events() <-chan DeviceEvent {
	return dm.events
}

// Controllers returns a snapshot of connected controllers
func (dm *DeviceManager) Controllers() map[string]Controller {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	copy := make(map[string]Controller, len(dm.controllers))
	for k, v := range dm.controllers {
		copy[k] = v
	}
	return copy
}

// Run starts the polling loop (blocking - run in goroutine)
func (dm *DeviceManager) Run(ctx context.Context) {
	ticker := time.NewTicker(dm.pollRate)
	defer ticker.Stop()

	dm.scan()

	for {
		select {
		case <-ctx.Done():
			dm.closeAll()
			close(dm.events)
			return
		case <-ticker.C:
			dm.scan()
		}
	}
}

// Wants reports whether an input port should be opened
func (dm *DeviceManager) Wants(name string) bool {
	if name == "" || (dm.skip != "" && name == dm.skip) {
		return false
	}
	if len(dm.filters) == 0 {
		return !strings.Contains(strings.ToLower(name), "through")
	}
	lower := strings.ToLower(name)
	for _, f := range dm.filters {
		if f != "" && strings.Contains(lower, strings.ToLower(f)) {
			return true
		}
	}
	return false
}

func (dm *DeviceManager) scan() {
	inPorts, _, err := scanPorts()
	if err != nil {
		debug.LogEvery(30, "midi", "scan: %v", err)
		return
	}

	seenIDs := make(map[string]bool)

	for _, inPort := range inPorts {
		id := inPort.String()
		if !dm.Wants(id) {
			continue
		}
		seenIDs[id] = true

		dm.mu.RLock()
		_, exists := dm.controllers[id]
		dm.mu.RUnlock()
		if exists {
			continue
		}

		kb, err := NewKeyboardController(id, inPort)
		if err != nil {
			debug.Log("midi", "open %s: %v", id, err)
			continue
		}

		dm.mu.Lock()
		dm.controllers[id] = kb
		dm.mu.Unlock()

		debug.Log("midi", "connected %s", id)
		dm.events <- DeviceEvent{Type: DeviceConnected, Controller: kb, ID: id}
	}

	dm.mu.Lock()
	var toRemove []string
	for id := range dm.controllers {
		if !seenIDs[id] {
			toRemove = append(toRemove, id)
		}
	}
	for _, id := range toRemove {
		c := dm.controllers[id]
		c.Close()
		delete(dm.controllers, id)
		debug.Log("midi", "disconnected %s", id)
		dm.events <- DeviceEvent{Type: DeviceDisconnected, ID: id}
	}
	dm.mu.Unlock()
}

func (dm *DeviceManager) closeAll() {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	for _, c := range dm.controllers {
		c.Close()
	}
	dm.controllers = make(map[string]Controller)
}
