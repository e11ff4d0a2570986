package musicstring

import (
	"strings"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"

	"github.com/cbegin/musicstring-go/internal/midiout"
	"github.com/cbegin/musicstring-go/internal/notation"
	"github.com/cbegin/musicstring-go/internal/sequencer"
)

// Compile parses text with a fresh parser and returns the built song. When
// some tokens fail the partial song is returned along with ErrParse.
func Compile(text string) (*Song, error) {
	return CompileWith(notation.DefaultParserConfig(), text)
}

func CompileWith(cfg ParserConfig, text string) (*Song, error) {
	parser := notation.NewParser(cfg)
	pc := parser.Config()
	b := sequencer.NewBuilder(sequencer.Config{Resolution: pc.Resolution, Tempo: pc.DefaultTempo})
	parser.OnRecord(b.Add)
	var rejected []string
	parser.OnError(func(_ *notation.Parser, err *notation.ParseError) {
		if err.Code.Category() == notation.GrammarAnomaly {
			rejected = append(rejected, err.Token)
		}
	})
	ok := parser.Parse(text)
	song := b.Song()
	if !ok {
		return song, fault.Wrap(ErrParse,
			fmsg.With("rejected tokens: "+strings.Join(rejected, " ")),
			ftag.With(ftag.InvalidArgument))
	}
	return song, nil
}

// EncodeSMF renders song as a format 1 standard MIDI file.
func EncodeSMF(song *Song) ([]byte, error) {
	return midiout.EncodeSMF(song)
}
