package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"dynamicdevices.com/eink/pmuctl/pmu"
)

// jsonEnvelope is the machine-readable wrapper around one command round-trip.
type jsonEnvelope struct {
	Timestamp   time.Time `json:"timestamp"`
	Command     string    `json:"command"`
	Status      string    `json:"status"`
	Data        any       `json:"data"`
	RawResponse string    `json:"raw_response"`
}

// writeOutput renders a reply in the configured format. A nil record means
// the reply did not classify into a typed measurement and is emitted as raw
// text.
func writeOutput(w io.Writer, format, command string, reply pmu.Reply, record any) error {
	switch format {
	case "json":
		env := jsonEnvelope{
			Timestamp:   time.Now().UTC(),
			Command:     command,
			Status:      "success",
			RawResponse: reply.Text,
		}
		if record != nil {
			env.Data = record
		} else {
			env.Data = map[string]any{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(env)

	case "csv":
		return writeCSV(w, reply, record)

	default:
		if reply.Text == "" {
			_, err := fmt.Fprintln(w, "(no reply)")
			return err
		}
		_, err := fmt.Fprintln(w, reply.Text)
		return err
	}
}

func writeCSV(w io.Writer, reply pmu.Reply, record any) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if record == nil {
		if err := cw.Write([]string{"response"}); err != nil {
			return err
		}
		if err := cw.Write([]string{reply.Text}); err != nil {
			return err
		}
		cw.Flush()
		return cw.Error()
	}

	fields, err := flattenRecord(record)
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	row := make([]string, len(keys))
	for i, k := range keys {
		row[i] = fields[k]
	}
	if err := cw.Write(keys); err != nil {
		return err
	}
	if err := cw.Write(row); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

// flattenRecord turns a typed record into a flat column map via its JSON
// form, so omitted optional fields never produce columns.
func flattenRecord(record any) (map[string]string, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return nil, err
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		out[k] = fmt.Sprintf("%v", v)
	}
	return out, nil
}
