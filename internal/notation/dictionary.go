package notation

import "strings"

// Dictionary maps macro names to numeric values. Names are case-insensitive.
type Dictionary struct {
	values map[string]float64
}

func NewDictionary() *Dictionary {
	d := &Dictionary{values: make(map[string]float64, 256)}
	d.seed()
	return d
}

func (d *Dictionary) Define(name string, value float64) {
	d.values[normalizeName(name)] = value
}

func (d *Dictionary) Resolve(name string) (float64, bool) {
	v, ok := d.values[normalizeName(name)]
	return v, ok
}

func (d *Dictionary) Len() int { return len(d.values) }

func (d *Dictionary) reset() {
	d.values = make(map[string]float64, 256)
	d.seed()
}

func (d *Dictionary) seed() {
	for program, name := range instrumentNames {
		d.values[name] = float64(program)
	}
	for name, bpm := range tempoNames {
		d.values[name] = float64(bpm)
	}
	for name, cc := range controllerNames {
		d.values[name] = float64(cc)
	}
	for name, note := range percussionNames {
		d.values[name] = float64(note)
	}
}

func normalizeName(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, " ", "_")
	return strings.ToUpper(name)
}

func isNameByte(b byte) bool {
	return b == '_' || (b >= '0' && b <= '9') || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

var instrumentNames = [128]string{
	"PIANO", "BRIGHT_ACOUSTIC", "ELECTRIC_GRAND", "HONKEY_TONK", "ELECTRIC_PIANO", "ELECTRIC_PIANO_2", "HARPSICHORD", "CLAVINET",
	"CELESTA", "GLOCKENSPIEL", "MUSIC_BOX", "VIBRAPHONE", "MARIMBA", "XYLOPHONE", "TUBULAR_BELLS", "DULCIMER",
	"DRAWBAR_ORGAN", "PERCUSSIVE_ORGAN", "ROCK_ORGAN", "CHURCH_ORGAN", "REED_ORGAN", "ACCORDIAN", "HARMONICA", "TANGO_ACCORDIAN",
	"GUITAR", "STEEL_STRING_GUITAR", "ELECTRIC_JAZZ_GUITAR", "ELECTRIC_CLEAN_GUITAR", "ELECTRIC_MUTED_GUITAR", "OVERDRIVEN_GUITAR", "DISTORTION_GUITAR", "GUITAR_HARMONICS",
	"ACOUSTIC_BASS", "ELECTRIC_BASS_FINGER", "ELECTRIC_BASS_PICK", "FRETLESS_BASS", "SLAP_BASS_1", "SLAP_BASS_2", "SYNTH_BASS_1", "SYNTH_BASS_2",
	"VIOLIN", "VIOLA", "CELLO", "CONTRABASS", "TREMOLO_STRINGS", "PIZZICATO_STRINGS", "ORCHESTRAL_STRINGS", "TIMPANI",
	"STRING_ENSEMBLE_1", "STRING_ENSEMBLE_2", "SYNTH_STRINGS_1", "SYNTH_STRINGS_2", "CHOIR_AAHS", "VOICE_OOHS", "SYNTH_VOICE", "ORCHESTRA_HIT",
	"TRUMPET", "TROMBONE", "TUBA", "MUTED_TRUMPET", "FRENCH_HORN", "BRASS_SECTION", "SYNTHBRASS_1", "SYNTHBRASS_2",
	"SOPRANO_SAX", "ALTO_SAX", "TENOR_SAX", "BARITONE_SAX", "OBOE", "ENGLISH_HORN", "BASSOON", "CLARINET",
	"PICCOLO", "FLUTE", "RECORDER", "PAN_FLUTE", "BLOWN_BOTTLE", "SKAKUHACHI", "WHISTLE", "OCARINA",
	"SQUARE", "SAWTOOTH", "CALLIOPE", "CHIFF", "CHARANG", "VOICE", "FIFTHS", "BASSLEAD",
	"NEW_AGE", "WARM", "POLYSYNTH", "CHOIR", "BOWED", "METALLIC", "HALO", "SWEEP",
	"RAIN", "SOUNDTRACK", "CRYSTAL", "ATMOSPHERE", "BRIGHTNESS", "GOBLIN", "ECHOES", "SCI_FI",
	"SITAR", "BANJO", "SHAMISEN", "KOTO", "KALIMBA", "BAGPIPE", "FIDDLE", "SHANAI",
	"TINKLE_BELL", "AGOGO", "STEEL_DRUMS", "WOODBLOCK", "TAIKO_DRUM", "MELODIC_TOM", "SYNTH_DRUM", "REVERSE_CYMBAL",
	"GUITAR_FRET_NOISE", "BREATH_NOISE", "SEASHORE", "BIRD_TWEET", "TELEPHONE_RING", "HELICOPTER", "APPLAUSE", "GUNSHOT",
}

var tempoNames = map[string]int{
	"GRAVE":       40,
	"LARGO":       45,
	"LARGHETTO":   50,
	"LENTO":       55,
	"ADAGIO":      60,
	"ADAGIETTO":   65,
	"ANDANTE":     70,
	"ANDANTINO":   80,
	"MODERATO":    95,
	"ALLEGRETTO":  110,
	"ALLEGRO":     120,
	"VIVACE":      145,
	"PRESTO":      180,
	"PRESTISSIMO": 220,
}

var controllerNames = map[string]int{
	"BANK_SELECT":     0,
	"MODULATION":      1,
	"BREATH":          2,
	"FOOT_PEDAL":      4,
	"PORTAMENTO_TIME": 5,
	"DATA_ENTRY":      6,
	"VOLUME":          7,
	"BALANCE":         8,
	"PAN_POSITION":    10,
	"EXPRESSION":      11,
	"SUSTAIN":         64,
	"PORTAMENTO":      65,
	"SOSTENUTO":       66,
	"SOFT":            67,
	"LEGATO":          68,
	"REVERB":          91,
	"TREMOLO":         92,
	"CHORUS":          93,
	"CELESTE":         94,
	"PHASER":          95,
	"ALL_SOUND_OFF":   120,
	"RESET_ALL":       121,
	"ALL_NOTES_OFF":   123,
}

var percussionNames = map[string]int{
	"ACOUSTIC_BASS_DRUM": 35,
	"BASS_DRUM":          36,
	"SIDE_STICK":         37,
	"ACOUSTIC_SNARE":     38,
	"HAND_CLAP":          39,
	"ELECTRIC_SNARE":     40,
	"LOW_FLOOR_TOM":      41,
	"CLOSED_HI_HAT":      42,
	"HIGH_FLOOR_TOM":     43,
	"PEDAL_HI_HAT":       44,
	"LOW_TOM":            45,
	"OPEN_HI_HAT":        46,
	"LOW_MID_TOM":        47,
	"HI_MID_TOM":         48,
	"CRASH_CYMBAL_1":     49,
	"HIGH_TOM":           50,
	"RIDE_CYMBAL_1":      51,
	"CHINESE_CYMBAL":     52,
	"RIDE_BELL":          53,
	"TAMBOURINE":         54,
	"SPLASH_CYMBAL":      55,
	"COWBELL":            56,
	"CRASH_CYMBAL_2":     57,
	"VIBRASLAP":          58,
	"RIDE_CYMBAL_2":      59,
	"HI_BONGO":           60,
	"LOW_BONGO":          61,
	"MUTE_HI_CONGA":      62,
	"OPEN_HI_CONGA":      63,
	"LOW_CONGA":          64,
}
