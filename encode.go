package pnl

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/etnz/pnl/date"
	"github.com/shopspring/decimal"
)

func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

const attrOn = "on"

// EncodeResults writes one JSON line per result, fields in a fixed order.
// Equal results always produce identical bytes.
func EncodeResults(w io.Writer, results []DailyResult) error {
	for _, r := range results {
		data, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("failed to marshal result of %s: %w", r.Date, err)
		}
		if _, err := w.Write(append(data, '\n')); err != nil {
			return fmt.Errorf("failed to write result: %w", err)
		}
	}
	return nil
}

// DailyCloses are the official closes of one day, by symbol. A symbol whose
// close is known to have failed maps to a nil price.
type DailyCloses struct {
	Date   date.Date
	Prices map[string]*Money
}

// DecodeCloses reads official closes from a JSONL stream, one day per line:
//
//	{"on":"2024-01-02","AAPL":190.12,"AAPL240119C00150000":3.2,"MSFT":null}
//
// A null value records a failed close. Empty lines are skipped.
func DecodeCloses(r io.Reader) ([]DailyCloses, error) {
	var days []DailyCloses
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		txt := bytes.TrimSpace(scanner.Bytes())
		if len(txt) == 0 {
			continue
		}
		dc, err := decodeDailyCloses(txt)
		if err != nil {
			return nil, fmt.Errorf("parse error line %d: %w", line, err)
		}
		days = append(days, dc)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading closes: %w", err)
	}
	return days, nil
}

func decodeDailyCloses(txt []byte) (DailyCloses, error) {
	jobj := make(map[string]any)
	dec := json.NewDecoder(bytes.NewReader(txt))
	dec.UseNumber()
	if err := dec.Decode(&jobj); err != nil {
		return DailyCloses{}, fmt.Errorf("not a correct json: %w", err)
	}

	jvalue, ok := jobj[attrOn]
	if !ok {
		return DailyCloses{}, fmt.Errorf("missing the property %q with a date", attrOn)
	}
	jstring, ok := jvalue.(string)
	if !ok {
		return DailyCloses{}, fmt.Errorf("property %q must be of type 'string'", attrOn)
	}
	on, err := date.Parse(jstring)
	if err != nil {
		return DailyCloses{}, fmt.Errorf("property %q must be a valid date: %w", attrOn, err)
	}

	dc := DailyCloses{Date: on, Prices: make(map[string]*Money, len(jobj)-1)}
	for symbol, price := range jobj {
		if symbol == attrOn {
			continue
		}
		if price == nil {
			dc.Prices[symbol] = nil
			continue
		}
		n, ok := price.(json.Number)
		if !ok {
			return DailyCloses{}, fmt.Errorf("property %q must be of type 'number'", symbol)
		}
		d, err := decimal.NewFromString(n.String())
		if err != nil {
			return DailyCloses{}, fmt.Errorf("property %q: %w", symbol, err)
		}
		p := P(d)
		dc.Prices[symbol] = &p
	}
	return dc, nil
}

// EncodeCloses writes closes in the format read by DecodeCloses, symbols in
// alphabetical order.
func EncodeCloses(w io.Writer, days []DailyCloses) error {
	for _, dc := range days {
		var o orderedObject
		o.Field(attrOn, dc.Date)
		for _, sym := range slices.Sorted(maps.Keys(dc.Prices)) {
			o.Field(sym, dc.Prices[sym])
		}
		data, err := o.MarshalJSON()
		if err != nil {
			return err
		}
		if _, err := w.Write(append(data, '\n')); err != nil {
			return fmt.Errorf("failed to write closes: %w", err)
		}
	}
	return nil
}
