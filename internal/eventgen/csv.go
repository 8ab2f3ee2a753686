package eventgen

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/storelabs/storelabs/internal/errors"
	"github.com/storelabs/storelabs/pkg/types"
)

// Header is the flat record header, in column order.
var Header = types.EventSchema().ColumnNames()

// TimeLayout is the event_time format: RFC 3339 in UTC at second resolution.
const TimeLayout = "2006-01-02T15:04:05Z"

// Writer encodes events as flat CSV records.
type Writer struct {
	w           *csv.Writer
	wroteHeader bool
}

// NewWriter creates a Writer. The header row is written before the first
// record.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: csv.NewWriter(w)}
}

// Write encodes one event.
func (w *Writer) Write(e types.Event) error {
	if !w.wroteHeader {
		if err := w.w.Write(Header); err != nil {
			return err
		}
		w.wroteHeader = true
	}
	return w.w.Write(EncodeRecord(e))
}

// Flush writes buffered records and reports any write error.
func (w *Writer) Flush() error {
	if !w.wroteHeader {
		if err := w.w.Write(Header); err != nil {
			return err
		}
		w.wroteHeader = true
	}
	w.w.Flush()
	return w.w.Error()
}

// WriteAll encodes events, header included, and flushes.
func WriteAll(out io.Writer, events []types.Event) error {
	w := NewWriter(out)
	for _, e := range events {
		if err := w.Write(e); err != nil {
			return err
		}
	}
	return w.Flush()
}

// EncodeRecord returns the CSV fields for e. Absent product fields are empty.
func EncodeRecord(e types.Event) []string {
	rec := []string{
		strconv.FormatInt(e.EventID, 10),
		e.UserID,
		e.SessionID,
		e.EventTime.UTC().Format(TimeLayout),
		string(e.EventType),
		"", "", "",
		e.City,
		e.DeviceType,
	}
	if e.Product != nil {
		rec[5] = e.Product.ID
		rec[6] = e.Product.Category
		rec[7] = e.Product.Price.String()
	}
	return rec
}

// Reader decodes flat CSV records. The header row is validated on the first
// read.
type Reader struct {
	r          *csv.Reader
	readHeader bool
	line       int
}

// NewReader creates a Reader.
func NewReader(r io.Reader) *Reader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(Header)
	cr.ReuseRecord = true
	return &Reader{r: cr}
}

// Read returns the next event, or io.EOF after the last record. Malformed
// input yields a MALFORMED_RECORD error.
func (r *Reader) Read() (types.Event, error) {
	if !r.readHeader {
		header, err := r.r.Read()
		if err == io.EOF {
			return types.Event{}, errors.NewMalformedRecord("missing header row", nil)
		}
		if err != nil {
			return types.Event{}, errors.NewMalformedRecord("read header", err)
		}
		r.line++
		if strings.Join(header, ",") != strings.Join(Header, ",") {
			return types.Event{}, errors.NewMalformedRecord(
				fmt.Sprintf("unexpected header %q", strings.Join(header, ",")), nil)
		}
		r.readHeader = true
	}

	rec, err := r.r.Read()
	if err == io.EOF {
		return types.Event{}, io.EOF
	}
	r.line++
	if err != nil {
		return types.Event{}, errors.NewMalformedRecord(fmt.Sprintf("line %d", r.line), err)
	}
	e, err := DecodeRecord(rec)
	if err != nil {
		return types.Event{}, errors.NewMalformedRecord(fmt.Sprintf("line %d", r.line), err).
			WithDetails(map[string]interface{}{"line": r.line})
	}
	return e, nil
}

// ReadAll decodes every remaining record.
func ReadAll(in io.Reader) ([]types.Event, error) {
	r := NewReader(in)
	var events []types.Event
	for {
		e, err := r.Read()
		if err == io.EOF {
			return events, nil
		}
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
}

// DecodeRecord parses the fields of one record.
func DecodeRecord(rec []string) (types.Event, error) {
	if len(rec) != len(Header) {
		return types.Event{}, fmt.Errorf("expected %d fields, got %d", len(Header), len(rec))
	}

	id, err := strconv.ParseInt(rec[0], 10, 64)
	if err != nil {
		return types.Event{}, fmt.Errorf("event_id: %w", err)
	}
	at, err := time.Parse(time.RFC3339, rec[3])
	if err != nil {
		return types.Event{}, fmt.Errorf("event_time: %w", err)
	}
	et := types.EventType(rec[4])
	if !et.Valid() {
		return types.Event{}, fmt.Errorf("event_type: unknown value %q", rec[4])
	}

	e := types.Event{
		EventID:    id,
		UserID:     rec[1],
		SessionID:  rec[2],
		EventTime:  at.UTC(),
		EventType:  et,
		City:       rec[8],
		DeviceType: rec[9],
	}

	productID, category, price := rec[5], rec[6], rec[7]
	if productID == "" && category == "" && price == "" {
		return e, nil
	}
	if productID == "" || category == "" || price == "" {
		return types.Event{}, fmt.Errorf("product fields must be all present or all empty")
	}
	p, err := ParsePrice(price)
	if err != nil {
		return types.Event{}, fmt.Errorf("price: %w", err)
	}
	e.Product = &types.Product{ID: productID, Category: category, Price: p}
	return e, nil
}

// ParsePrice parses a decimal amount with up to two fractional digits into
// cents.
func ParsePrice(s string) (types.Price, error) {
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	whole, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		whole, frac = s[:i], s[i+1:]
	}
	if whole == "" || len(frac) > 2 {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	for len(frac) < 2 {
		frac += "0"
	}

	units, err := strconv.ParseUint(whole, 10, 62)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	cents, err := strconv.ParseUint(frac, 10, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", s)
	}

	if units > (math.MaxInt64-99)/100 {
		return 0, fmt.Errorf("amount %q out of range", s)
	}
	p := types.Price(int64(units)*100 + int64(cents))
	if neg {
		p = -p
	}
	return p, nil
}
