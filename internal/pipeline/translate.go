package pipeline

import (
	"encoding/json"
	"strconv"
)

// Cloud command names with dedicated translation rules.
const (
	CommandOnOff              = "action.devices.commands.OnOff"
	CommandBrightnessAbsolute = "action.devices.commands.BrightnessAbsolute"
)

// Code-table keys for the coarse brightness toggle. Most physical IR
// remotes only have brighter/dimmer buttons, so absolute brightness maps
// to one of two stored codes.
const (
	keyBrightnessDecrease = "0"
	keyBrightnessIncrease = "100"
)

// Translate maps an abstract (command, params) pair plus the current state
// snapshot to a lookup key into the remote's code table.
//
// OnOff yields "on" or "off" from the boolean parameter. Absolute
// brightness compares the requested level against the snapshot: below
// current emits the decrease key, otherwise the increase key. This is a
// best-effort approximation; callers must not assume convergence in one
// command. Any other command passes its params through as a caller-defined
// key.
//
// The snapshot is taken once per command batch before translation and is
// not re-read between commands, so every command in a batch sees the same
// state.
func Translate(command string, params, snapshot map[string]any) string {
	switch command {
	case CommandOnOff:
		if on, _ := params["on"].(bool); on {
			return "on"
		}
		return "off"

	case CommandBrightnessAbsolute:
		requested, _ := toFloat(params["brightness"])
		current, _ := toFloat(snapshot["brightness"])
		if requested < current {
			return keyBrightnessDecrease
		}
		return keyBrightnessIncrease

	default:
		return passthroughKey(params)
	}
}

// passthroughKey renders params as a code-table key for commands without a
// dedicated rule. A single scalar parameter becomes its literal string
// form; anything else becomes the canonical JSON of the parameter map
// (json.Marshal sorts map keys, so the key is stable).
func passthroughKey(params map[string]any) string {
	if len(params) == 1 {
		for _, v := range params {
			if s, ok := scalarString(v); ok {
				return s
			}
		}
	}

	b, err := json.Marshal(params)
	if err != nil {
		return ""
	}
	return string(b)
}

// scalarString formats a scalar JSON value as a string key.
func scalarString(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case bool:
		return strconv.FormatBool(val), true
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	case int:
		return strconv.Itoa(val), true
	default:
		return "", false
	}
}

// toFloat extracts a numeric value from a decoded JSON parameter.
func toFloat(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case int:
		return float64(val), true
	default:
		return 0, false
	}
}
