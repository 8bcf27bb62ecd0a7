package flex

import (
	"regexp"
	"strconv"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/wegman-software/chainmerge/internal/changeset"
	"github.com/wegman-software/chainmerge/internal/hours"
	"github.com/wegman-software/chainmerge/internal/point"
)

// Tag transform helper functions for Lua scripts

var (
	whitespaceRegex = regexp.MustCompile(`\s+`)
	nonDigitRegex   = regexp.MustCompile(`\D`)
)

var dayNames = [7]string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}

// RegisterTransforms registers all tag transform functions in the Lua state
func RegisterTransforms(L *lua.LState) {
	transforms := L.NewTable()

	// String transforms
	L.SetField(transforms, "trim", L.NewFunction(luaTrim))
	L.SetField(transforms, "lower", L.NewFunction(luaLower))
	L.SetField(transforms, "upper", L.NewFunction(luaUpper))
	L.SetField(transforms, "clean_spaces", L.NewFunction(luaCleanSpaces))
	L.SetField(transforms, "truncate", L.NewFunction(luaTruncate))
	L.SetField(transforms, "format_phone", L.NewFunction(luaFormatPhone))

	// Feed values
	L.SetField(transforms, "parse_real", L.NewFunction(luaParseReal))
	L.SetField(transforms, "parse_clock", L.NewFunction(luaParseClock))
	L.SetField(transforms, "opening_hours", L.NewFunction(luaOpeningHours))
	L.SetField(transforms, "split_address", L.NewFunction(luaSplitAddress))

	api := L.GetGlobal("chainmerge")
	if api == lua.LNil {
		api = L.NewTable()
		L.SetGlobal("chainmerge", api)
	}
	L.SetField(api.(*lua.LTable), "transforms", transforms)

	// Also register common functions at top level for convenience
	L.SetGlobal("trim", L.NewFunction(luaTrim))
	L.SetGlobal("clean_spaces", L.NewFunction(luaCleanSpaces))
	L.SetGlobal("opening_hours", L.NewFunction(luaOpeningHours))
}

// luaTrim trims whitespace from a string
func luaTrim(L *lua.LState) int {
	s := L.CheckString(1)
	L.Push(lua.LString(strings.TrimSpace(s)))
	return 1
}

// luaLower converts string to lowercase
func luaLower(L *lua.LState) int {
	s := L.CheckString(1)
	L.Push(lua.LString(strings.ToLower(s)))
	return 1
}

// luaUpper converts string to uppercase
func luaUpper(L *lua.LState) int {
	s := L.CheckString(1)
	L.Push(lua.LString(strings.ToUpper(s)))
	return 1
}

// luaCleanSpaces normalizes whitespace (collapse multiple spaces, trim)
func luaCleanSpaces(L *lua.LState) int {
	s := L.CheckString(1)
	cleaned := whitespaceRegex.ReplaceAllString(s, " ")
	L.Push(lua.LString(strings.TrimSpace(cleaned)))
	return 1
}

// luaTruncate truncates string to max length in runes
func luaTruncate(L *lua.LState) int {
	s := L.CheckString(1)
	maxLen := L.CheckInt(2)

	runes := []rune(s)
	if len(runes) <= maxLen {
		L.Push(lua.LString(s))
	} else {
		L.Push(lua.LString(string(runes[:maxLen])))
	}
	return 1
}

// luaFormatPhone renders a 10 digit North American number as +1-NPA-NXX-XXXX.
// Other inputs are returned trimmed.
func luaFormatPhone(L *lua.LState) int {
	s := strings.TrimSpace(L.CheckString(1))
	L.Push(lua.LString(FormatPhone(s)))
	return 1
}

// FormatPhone renders a 10 digit North American number as +1-NPA-NXX-XXXX
func FormatPhone(s string) string {
	digits := nonDigitRegex.ReplaceAllString(s, "")
	if len(digits) == 11 && digits[0] == '1' {
		digits = digits[1:]
	}
	if len(digits) != 10 {
		return s
	}
	return "+1-" + digits[:3] + "-" + digits[3:6] + "-" + digits[6:]
}

// luaParseReal parses string to float, returning nil when invalid
func luaParseReal(L *lua.LState) int {
	s := strings.TrimSpace(L.CheckString(1))
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(lua.LNumber(v))
	return 1
}

// luaParseClock converts a feed time to HH:MM: parse_clock("7:00 PM", "3:04 PM")
func luaParseClock(L *lua.LState) int {
	value := L.CheckString(1)
	layout := L.OptString(2, "3:04 PM")
	clock, err := hours.ParseClock(value, layout)
	if err != nil {
		L.Push(lua.LNil)
		L.Push(lua.LString(err.Error()))
		return 2
	}
	L.Push(lua.LString(clock))
	return 1
}

// luaOpeningHours derives an opening_hours value from a table keyed by day name:
// opening_hours({sunday = {"07:00", "22:00"}, ...}). Missing days are an error.
func luaOpeningHours(L *lua.LState) int {
	tbl := L.CheckTable(1)

	var week hours.Week
	for i, day := range dayNames {
		entry, ok := tbl.RawGetString(day).(*lua.LTable)
		if !ok {
			L.ArgError(1, "missing hours for "+day)
			return 0
		}
		open := entry.RawGetInt(1)
		closeAt := entry.RawGetInt(2)
		if open.Type() != lua.LTString || closeAt.Type() != lua.LTString {
			L.ArgError(1, "hours for "+day+" must be {open, close}")
			return 0
		}
		week[i] = hours.Interval{Open: open.String(), Close: closeAt.String()}
	}

	L.Push(lua.LString(hours.Derive(week)))
	return 1
}

// luaSplitAddress returns housenumber and street of a "<number> <street>" address.
// street is nil when the address has no whitespace.
func luaSplitAddress(L *lua.LState) int {
	full := L.CheckString(1)
	tags, ok := changeset.SplitAddress(point.Tags{changeset.KeyFullAddress: full})
	L.Push(lua.LString(tags[changeset.KeyHouseNumber]))
	if ok {
		L.Push(lua.LString(tags[changeset.KeyStreet]))
	} else {
		L.Push(lua.LNil)
	}
	return 2
}
