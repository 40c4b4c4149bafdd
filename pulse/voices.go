package pulse

// Voice is a named sound the backend may colour notes with
type Voice struct {
	Name string
	Kind string
	Freq float64 // characteristic frequency, Hz
	// Attack in seconds
	Attack float64
}

// Voices is the sound bank cycled on every matched tick
var Voices = []Voice{
	{Name: "Subsonic Pulse", Kind: "rumble", Freq: 28, Attack: 0.6},
	{Name: "Earthquake", Kind: "earthquake", Freq: 25, Attack: 0.8},
	{Name: "Chaos Destroyer", Kind: "chaos", Freq: 180, Attack: 0.01},
	{Name: "Heavy Grind", Kind: "grind", Freq: 80, Attack: 0.3},
	{Name: "Impact", Kind: "impact", Freq: 225, Attack: 0.005},
	{Name: "Distorted Bass", Kind: "distorted", Freq: 55, Attack: 0.2},
	{Name: "Low Distortion", Kind: "distorted", Freq: 30, Attack: 0.3},
	{Name: "Grinding Chaos", Kind: "grind", Freq: 120, Attack: 0.15},
	{Name: "Harsh Noise", Kind: "chaos", Freq: 350, Attack: 0.02},
	{Name: "Drone", Kind: "drone", Freq: 45, Attack: 1.2},
	{Name: "Crickets", Kind: "crickets", Freq: 4500, Attack: 0.003},
	{Name: "Distant Voice", Kind: "voice", Freq: 140, Attack: 0.3},
}

// VoiceByName finds a voice in the bank
func VoiceByName(name string) (Voice, bool) {
	for _, v := range Voices {
		if v.Name == name {
			return v, true
		}
	}
	return Voice{}, false
}
