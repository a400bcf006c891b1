package pipeline

import "testing"

func TestTranslate_OnOff(t *testing.T) {
	tests := []struct {
		name   string
		params map[string]any
		want   string
	}{
		{name: "on", params: map[string]any{"on": true}, want: "on"},
		{name: "off", params: map[string]any{"on": false}, want: "off"},
		{name: "missing parameter defaults to off", params: map[string]any{}, want: "off"},
		{name: "non-boolean defaults to off", params: map[string]any{"on": "yes"}, want: "off"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Translate(CommandOnOff, tt.params, map[string]any{"brightness": 50.0})
			if got != tt.want {
				t.Errorf("Translate() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTranslate_BrightnessAbsolute(t *testing.T) {
	tests := []struct {
		name     string
		params   map[string]any
		snapshot map[string]any
		want     string
	}{
		{
			name:     "below current yields decrease",
			params:   map[string]any{"brightness": 30.0},
			snapshot: map[string]any{"brightness": 50.0},
			want:     keyBrightnessDecrease,
		},
		{
			name:     "above current yields increase",
			params:   map[string]any{"brightness": 80.0},
			snapshot: map[string]any{"brightness": 50.0},
			want:     keyBrightnessIncrease,
		},
		{
			name:     "equal to current yields increase",
			params:   map[string]any{"brightness": 50.0},
			snapshot: map[string]any{"brightness": 50.0},
			want:     keyBrightnessIncrease,
		},
		{
			name:     "no recorded brightness yields increase",
			params:   map[string]any{"brightness": 30.0},
			snapshot: map[string]any{},
			want:     keyBrightnessIncrease,
		},
		{
			name:     "integer values",
			params:   map[string]any{"brightness": 30},
			snapshot: map[string]any{"brightness": 50},
			want:     keyBrightnessDecrease,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Translate(CommandBrightnessAbsolute, tt.params, tt.snapshot)
			if got != tt.want {
				t.Errorf("Translate() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTranslate_Passthrough(t *testing.T) {
	tests := []struct {
		name   string
		params map[string]any
		want   string
	}{
		{
			name:   "single string parameter",
			params: map[string]any{"mode": "cool"},
			want:   "cool",
		},
		{
			name:   "single numeric parameter",
			params: map[string]any{"temperature": 22.0},
			want:   "22",
		},
		{
			name:   "single boolean parameter",
			params: map[string]any{"mute": true},
			want:   "true",
		},
		{
			name:   "multiple parameters become canonical JSON",
			params: map[string]any{"mode": "cool", "temperature": 22.0},
			want:   `{"mode":"cool","temperature":22}`,
		},
		{
			name:   "empty parameters",
			params: map[string]any{},
			want:   "{}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Translate("action.devices.commands.SetModes", tt.params, nil)
			if got != tt.want {
				t.Errorf("Translate() = %q, want %q", got, tt.want)
			}
		})
	}
}
