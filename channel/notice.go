package channel

import (
	"io"

	"github.com/rs/zerolog/log"
)

// UnsupportedNotice is the document shown in place of the application when
// the bridge is missing.
const UnsupportedNotice = `<!DOCTYPE html>
<html>
<head></head>
<body><h2>Ezi ipc not supported in this environment.</h2></body>
</html>
`

// NoticeHandler returns a failure handler that overwrites w with
// UnsupportedNotice. w is typically the document the front-end would serve.
func NoticeHandler(w io.Writer) func(error) {
	return func(err error) {
		switch doc := w.(type) {
		case interface{ Reset() }:
			doc.Reset()
		case interface {
			Truncate(int64) error
			io.Seeker
		}:
			_ = doc.Truncate(0)
			_, _ = doc.Seek(0, io.SeekStart)
		}
		if _, werr := io.WriteString(w, UnsupportedNotice); werr != nil {
			log.Error().Err(werr).Msg("failed to write unsupported notice")
		}
		log.Error().Err(err).Str("component", "channel").Msg("front-end disabled")
	}
}
