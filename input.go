package musicstring

import (
	"io"
	"os"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ReadMusicString reads a music string, honouring a UTF-8 or UTF-16 byte
// order mark. Input without a BOM is taken as UTF-8.
func ReadMusicString(r io.Reader) (string, error) {
	dec := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	data, err := io.ReadAll(transform.NewReader(r, dec))
	if err != nil {
		return "", fault.Wrap(err, fmsg.With("decode music string"))
	}
	return string(data), nil
}

func LoadMusicFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fault.Wrap(err, fmsg.With("open "+path), ftag.With(ftag.NotFound))
	}
	defer f.Close()
	return ReadMusicString(f)
}
