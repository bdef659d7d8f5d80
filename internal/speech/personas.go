package speech

// Persona is a named AI debater profile: a speaking-style description plus a
// voice identity for synthesis.
type Persona struct {
	Name        string
	DisplayName string
	Style       string
	VoiceID     string
}

var defaultPersona = Persona{
	Name:        "default",
	DisplayName: "Debater",
	Style:       "a composed, well-prepared varsity debater who argues from evidence and keeps a measured tone",
	VoiceID:     "en_US-lessac-medium",
}

var personas = map[string]Persona{
	"marcus": {
		Name:        "marcus",
		DisplayName: "Marcus",
		Style:       "an aggressive policy debater who leads with statistics, speaks in short declarative sentences, and attacks the opposing framework directly",
		VoiceID:     "en_US-ryan-high",
	},
	"elena": {
		Name:        "elena",
		DisplayName: "Elena",
		Style:       "a methodical analyst who builds layered arguments, concedes minor points strategically, and closes every speech with a clear weighing mechanism",
		VoiceID:     "en_US-amy-medium",
	},
	"jordan": {
		Name:        "jordan",
		DisplayName: "Jordan",
		Style:       "a persuasive storyteller who frames arguments around real-world impact, uses rhetorical questions sparingly, and emphasizes the human cost of the opposing case",
		VoiceID:     "en_GB-alan-medium",
	},
	"priya": {
		Name:        "priya",
		DisplayName: "Priya",
		Style:       "a rapid technical debater who extends dropped arguments relentlessly and signposts every contention by number",
		VoiceID:     "en_US-kathleen-low",
	},
}

// LookupPersona resolves a persona by name, falling back to the default
// profile for unknown or empty names.
func LookupPersona(name string) Persona {
	if p, ok := personas[name]; ok {
		return p
	}
	return defaultPersona
}

// PersonaNames lists the built-in profiles.
func PersonaNames() []string {
	names := make([]string, 0, len(personas))
	for n := range personas {
		names = append(names, n)
	}
	return names
}
