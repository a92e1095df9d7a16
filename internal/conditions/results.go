package conditions

import (
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"
)

type resultsDocument struct {
	Subject  string    `yaml:"subject"`
	Session  string    `yaml:"session"`
	Finished time.Time `yaml:"finished"`
	Trials   []Record  `yaml:"trials"`
}

// WriteResults appends the records of one session to w as a YAML document.
// Successive sessions of a subject can share a file.
func WriteResults(w io.Writer, subject, session string, finished time.Time, records []Record) error {
	if _, err := io.WriteString(w, "---\n"); err != nil {
		return fmt.Errorf("writing results: %w", err)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	doc := resultsDocument{Subject: subject, Session: session, Finished: finished.UTC(), Trials: records}
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("writing results: %w", err)
	}
	return enc.Close()
}

// ReadResults decodes every session document written by WriteResults.
func ReadResults(r io.Reader) ([][]Record, error) {
	dec := yaml.NewDecoder(r)
	var out [][]Record
	for {
		var doc resultsDocument
		err := dec.Decode(&doc)
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		out = append(out, doc.Trials)
	}
}
