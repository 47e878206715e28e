// Package intent starts other programs on behalf of the application and
// carries their answers back, in the manner of mobile platform intents: a
// request names an action plus string extras, and a route table decides which
// executable handles that action.
package intent

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"golang.org/x/exp/maps"
)

type Intent struct {
	Action string            `json:"action,omitempty"`
	Extras map[string]string `json:"extras,omitempty"`
}

func New(action string) Intent {
	return Intent{Action: action}
}

func (i *Intent) PutExtra(key, value string) {
	if i.Extras == nil {
		i.Extras = make(map[string]string)
	}
	i.Extras[key] = value
}

// StringExtra returns the extra stored under key, or the empty string.
func (i Intent) StringExtra(key string) string {
	return i.Extras[key]
}

func (i Intent) HasExtra(key string) bool {
	_, ok := i.Extras[key]
	return ok
}

func (i Intent) String() string {
	var b strings.Builder
	b.WriteString(i.Action)
	b.WriteString("{")
	keys := maps.Keys(i.Extras)
	slices.Sort(keys)
	for n, k := range keys {
		if n > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s=%q", k, i.Extras[k])
	}
	b.WriteString("}")
	return b.String()
}

// Marshal encodes the intent the way it is handed to child processes.
func (i Intent) Marshal() ([]byte, error) {
	return json.Marshal(i)
}

func Unmarshal(data []byte) (Intent, error) {
	var i Intent
	if err := json.Unmarshal(data, &i); err != nil {
		return Intent{}, fmt.Errorf("failed decoding intent: %w", err)
	}
	return i, nil
}

type ResultCode int

const (
	ResultCanceled  ResultCode = 0
	ResultOK        ResultCode = -1
	ResultFirstUser ResultCode = 1
)

func (r ResultCode) String() string {
	switch r {
	case ResultOK:
		return "ok"
	case ResultCanceled:
		return "canceled"
	default:
		return fmt.Sprintf("user(%d)", int(r))
	}
}

// Receiver is notified when an activity started for a result finishes.
type Receiver interface {
	OnActivityResult(requestCode int, resultCode ResultCode, data Intent)
}
