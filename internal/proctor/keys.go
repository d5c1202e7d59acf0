package proctor

import "strings"

// KeyChord is a key press with its modifier state.
type KeyChord struct {
	Key   string `json:"key"`
	Ctrl  bool   `json:"ctrl,omitempty"`
	Shift bool   `json:"shift,omitempty"`
	Alt   bool   `json:"alt,omitempty"`
	Meta  bool   `json:"meta,omitempty"`
}

// blockedKeys are suppressed regardless of modifier state.
var blockedKeys = map[string]struct{}{
	"f12":    {},
	"escape": {},
}

// blockedChords is the deny list of combinations associated with developer
// tooling, view-source, and task switching. A chord matches when every
// modifier it requires is held and the key matches case-insensitively.
var blockedChords = []KeyChord{
	{Ctrl: true, Shift: true, Key: "i"}, // dev tools
	{Ctrl: true, Shift: true, Key: "j"}, // console
	{Ctrl: true, Key: "u"},              // view source
	{Alt: true, Key: "tab"},             // task switch
	{Meta: true, Key: "tab"},            // task switch (mac)
}

// Blocked reports whether the chord is on the deny list.
func Blocked(chord KeyChord) bool {
	key := strings.ToLower(chord.Key)
	if _, ok := blockedKeys[key]; ok {
		return true
	}

	for _, candidate := range blockedChords {
		if candidate.Ctrl && !chord.Ctrl {
			continue
		}
		if candidate.Shift && !chord.Shift {
			continue
		}
		if candidate.Alt && !chord.Alt {
			continue
		}
		if candidate.Meta && !chord.Meta {
			continue
		}
		if key == candidate.Key {
			return true
		}
	}

	return false
}
