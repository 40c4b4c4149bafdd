package midi

import "time"

// MIDI message types
const (
	NoteOn  uint8 = 0x90
	NoteOff uint8 = 0x80
)

// NoteEvent is a key going down or up on a MIDI keyboard
type NoteEvent struct {
	Type     uint8 // NoteOn or NoteOff
	Note     uint8
	Velocity uint8
	Channel  uint8
	At       time.Time
}

// Event is one outgoing MIDI message due at an audio-clock time
type Event struct {
	Time     float64 // audio-clock seconds
	Type     uint8   // NoteOn, NoteOff
	Channel  uint8   // 0-15
	Note     uint8
	Velocity uint8
	seq      uint64
}
