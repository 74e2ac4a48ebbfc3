// Package ingest reads and writes events as JSON lines, one object per event:
//
//	{"event": 1, "digis": [{"det": 5, "row": 1, "col": 2, "adc": 40}], "units": [7]}
//
// "units" optionally lists detector units that were read out without hits.
package ingest

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/banshee-data/pixelreco/internal/pixel"
	"github.com/banshee-data/pixelreco/internal/pixel/detset"
	"github.com/banshee-data/pixelreco/internal/pixel/producer"
)

type digiRecord struct {
	Det uint32 `json:"det"`
	Row uint16 `json:"row"`
	Col uint16 `json:"col"`
	ADC uint16 `json:"adc"`
}

type eventRecord struct {
	Event *int64       `json:"event,omitempty"`
	Digis []digiRecord `json:"digis"`
	Units []uint32     `json:"units,omitempty"`
}

// Reader decodes events from a JSON-lines stream. Each event's digis are
// grouped per detector unit with keys in ascending order; a unit's digis
// keep their order in the stream.
type Reader struct {
	dec     *json.Decoder
	closer  io.Closer
	builder *detset.Builder[pixel.DetUnitID, pixel.Digi]
	count   int
	nextID  int64
}

// NewReader reads events from r.
func NewReader(r io.Reader) *Reader {
	return &Reader{
		dec:     json.NewDecoder(bufio.NewReader(r)),
		builder: detset.NewBuilder[pixel.DetUnitID, pixel.Digi](),
	}
}

// Open reads events from a file. "-" reads standard input.
func Open(path string) (*Reader, error) {
	if path == "-" {
		return NewReader(os.Stdin), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open events: %w", err)
	}
	r := NewReader(f)
	r.closer = f
	return r, nil
}

// Next returns the next event, or io.EOF at the end of the stream. Events
// without an "event" field are numbered after the previous one.
func (r *Reader) Next(ctx context.Context) (producer.Event, error) {
	if err := ctx.Err(); err != nil {
		return producer.Event{}, err
	}

	var rec eventRecord
	if err := r.dec.Decode(&rec); err != nil {
		if errors.Is(err, io.EOF) {
			return producer.Event{}, io.EOF
		}
		return producer.Event{}, fmt.Errorf("decode event %d: %w", r.count+1, err)
	}
	r.count++

	id := r.nextID
	if rec.Event != nil {
		id = *rec.Event
	}
	r.nextID = id + 1

	for _, u := range rec.Units {
		r.builder.Touch(pixel.DetUnitID(u))
	}
	for _, d := range rec.Digis {
		r.builder.Add(pixel.DetUnitID(d.Det), pixel.Digi{Row: d.Row, Col: d.Col, ADC: d.ADC})
	}
	return producer.Event{ID: id, Digis: r.builder.Build()}, nil
}

// Count returns the number of events decoded so far.
func (r *Reader) Count() int { return r.count }

// Close closes the underlying file, if Open created one.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// Writer encodes events as JSON lines.
type Writer struct {
	enc *json.Encoder
}

// NewWriter writes events to w.
func NewWriter(w io.Writer) *Writer { return &Writer{enc: json.NewEncoder(w)} }

// Write encodes one event. Units with no digis are listed under "units".
func (w *Writer) Write(ev producer.Event) error {
	id := ev.ID
	rec := eventRecord{Event: &id, Digis: make([]digiRecord, 0, ev.Digis.Size())}
	for det, digis := range ev.Digis.All() {
		if len(digis) == 0 {
			rec.Units = append(rec.Units, uint32(det))
			continue
		}
		for _, d := range digis {
			rec.Digis = append(rec.Digis, digiRecord{Det: uint32(det), Row: d.Row, Col: d.Col, ADC: d.ADC})
		}
	}
	if err := w.enc.Encode(rec); err != nil {
		return fmt.Errorf("encode event %d: %w", ev.ID, err)
	}
	return nil
}
