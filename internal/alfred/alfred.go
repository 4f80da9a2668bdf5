// Package alfred writes Alfred script filter output.
package alfred

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
)

// Rerun bounds accepted by Alfred.
const (
	MinRerun = 100 * time.Millisecond
	MaxRerun = 5 * time.Second
)

// DefaultRerun makes Alfred run the script filter again one second after it
// returned, which picks up entries refreshed in the background meanwhile.
const DefaultRerun = time.Second

// Text is shown when the user copies (⌘C) or shows large type (⌘L).
type Text struct {
	Copy      string `json:"copy,omitempty"`
	LargeType string `json:"largetype,omitempty"`
}

// Item is one row of the result list.
type Item struct {
	Title        string `json:"title"`
	Subtitle     string `json:"subtitle,omitempty"`
	Arg          string `json:"arg,omitempty"`
	Autocomplete string `json:"autocomplete,omitempty"`
	Valid        *bool  `json:"valid,omitempty"`
	Text         *Text  `json:"text,omitempty"`

	// Description is the markdown body of a work item, for terminal views.
	Description string `json:"-"`
}

// URL returns the part of Arg before the first ';', which is how lookup
// items carry their link.
func (i Item) URL() string {
	url, _, _ := strings.Cut(i.Arg, ";")
	return url
}

// Output is a complete script filter response.
type Output struct {
	Rerun time.Duration
	Items []Item
}

type output struct {
	Rerun float64 `json:"rerun,omitempty"`
	Items []Item  `json:"items"`
}

// MarshalJSON encodes the rerun interval in seconds, clamped to what Alfred
// accepts. A zero interval is omitted.
func (o Output) MarshalJSON() ([]byte, error) {
	out := output{Items: o.Items}
	if out.Items == nil {
		out.Items = []Item{}
	}
	if o.Rerun > 0 {
		out.Rerun = min(max(o.Rerun, MinRerun), MaxRerun).Seconds()
	}
	return json.Marshal(out)
}

// Write encodes o to w.
func (o Output) Write(w io.Writer) error {
	if err := json.NewEncoder(w).Encode(o); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// ErrorItem reports err as a single invalid item.
func ErrorItem(err error) Item {
	invalid := false
	return Item{
		Title:    fmt.Sprintf("Error: %v", err),
		Subtitle: "The workflow errored! You might want to try debugging it or checking the logs.",
		Valid:    &invalid,
		Text:     &Text{Copy: err.Error(), LargeType: err.Error()},
	}
}
