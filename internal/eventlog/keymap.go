package eventlog

import (
	"strconv"
	"strings"
)

// KeyMap is the single table translating host key codes into the identifiers
// written to the log and shown on the overlay. Sharing one table guarantees a
// physical key always encodes to the same string.
type KeyMap struct {
	byCode map[int]string
	byName map[string]int
}

// NewKeyMap builds a KeyMap from code -> identifier pairs.
func NewKeyMap(entries map[int]string) *KeyMap {
	km := &KeyMap{
		byCode: make(map[int]string, len(entries)),
		byName: make(map[string]int, len(entries)),
	}
	for code, id := range entries {
		km.byCode[code] = id
		km.byName[strings.ToUpper(id)] = code
	}
	return km
}

// DefaultKeyMap covers the virtual-key codes most hosts report: letters,
// digits, function keys, arrows and common modifiers.
func DefaultKeyMap() *KeyMap {
	entries := map[int]string{
		8: "Backspace", 9: "Tab", 13: "Enter", 16: "Shift", 17: "Ctrl", 18: "Alt",
		27: "Escape", 32: "Space",
		37: "Left", 38: "Up", 39: "Right", 40: "Down",
	}
	for c := 'A'; c <= 'Z'; c++ {
		entries[int(c)] = string(c)
	}
	for c := '0'; c <= '9'; c++ {
		entries[int(c)] = string(c)
	}
	for i := 1; i <= 12; i++ {
		entries[111+i] = "F" + strconv.Itoa(i)
	}
	return NewKeyMap(entries)
}

// Resolve returns the identifier for a host key code. Unmapped codes get a
// stable synthetic identifier "K<code>".
func (km *KeyMap) Resolve(code int) string {
	if id, ok := km.byCode[code]; ok {
		return id
	}
	return "K" + strconv.Itoa(code)
}

// Canonical normalizes an identifier supplied by name (case-insensitive) to
// the spelling stored in the table. Unknown names pass through with field and
// line separators replaced, so the result is always a valid key id unless it
// is empty.
func (km *KeyMap) Canonical(name string) string {
	if code, ok := km.byName[strings.ToUpper(name)]; ok {
		return km.byCode[code]
	}
	return keyIDReplacer.Replace(strings.TrimSpace(name))
}

var keyIDReplacer = strings.NewReplacer("|", "/", "\n", " ", "\r", " ")
