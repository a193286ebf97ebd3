package stream

import (
	"bytes"
	"log/slog"

	"github.com/eduforge/eduforge-go/internal/telemetry"
)

// Record framing on the wire: each record is "data: <JSON>", records
// are separated by a blank line. Some proxies rewrite line endings, so
// CRLF blank lines are accepted too.
var (
	recordSep     = []byte("\n\n")
	recordSepCRLF = []byte("\r\n\r\n")
	dataPrefix    = []byte("data:")
)

// Decoder reassembles frames from a chunked byte stream. It keeps a
// running buffer so a record split across network reads is decoded
// once its final bytes arrive, and multiple records arriving in one
// read are all decoded. Malformed records are logged, counted, and
// skipped without disturbing the rest of the stream.
type Decoder struct {
	buf     []byte
	logger  *slog.Logger
	metrics *telemetry.Metrics
}

// NewDecoder creates a decoder.
func NewDecoder(logger *slog.Logger, metrics *telemetry.Metrics) *Decoder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Decoder{logger: logger, metrics: metrics}
}

// Feed appends a chunk to the buffer and returns every frame completed
// by it, in arrival order. A trailing partial record stays buffered
// for the next chunk.
func (d *Decoder) Feed(chunk []byte) []Frame {
	d.buf = append(d.buf, chunk...)

	var frames []Frame
	for {
		i, sep := bytes.Index(d.buf, recordSep), len(recordSep)
		if j := bytes.Index(d.buf, recordSepCRLF); j >= 0 && (i < 0 || j < i) {
			i, sep = j, len(recordSepCRLF)
		}
		if i < 0 {
			break
		}
		record := d.buf[:i]
		d.buf = d.buf[i+sep:]

		frame, ok := d.decodeRecord(record)
		if ok {
			frames = append(frames, frame)
		}
	}
	return frames
}

// Buffered reports how many bytes of a partial record are pending.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

// decodeRecord extracts the JSON payload from one delimited record.
// Comment lines (leading ':') and unknown field lines are ignored;
// multiple data lines are joined per the event-stream convention.
func (d *Decoder) decodeRecord(record []byte) (Frame, bool) {
	var payload []byte
	for _, line := range bytes.Split(record, []byte("\n")) {
		line = bytes.TrimSuffix(line, []byte("\r"))
		if len(line) == 0 || line[0] == ':' {
			continue
		}
		if !bytes.HasPrefix(line, dataPrefix) {
			continue
		}
		data := bytes.TrimPrefix(line, dataPrefix)
		data = bytes.TrimPrefix(data, []byte(" "))
		if len(payload) > 0 {
			payload = append(payload, '\n')
		}
		payload = append(payload, data...)
	}

	if len(payload) == 0 {
		return Frame{}, false
	}

	frame, err := ParseFrame(payload)
	if err != nil {
		d.metrics.RecordMalformedFrame()
		d.logger.Warn("skipping malformed record", "error", err)
		return Frame{}, false
	}
	d.metrics.RecordFrame(string(frame.Kind))
	return frame, true
}
