package flex

import (
	"testing"

	lua "github.com/yuin/gopher-lua"
)

func TestTransformTrim(t *testing.T) {
	L := lua.NewState()
	defer L.Close()
	RegisterTransforms(L)

	if err := L.DoString(`result = trim("  hello  ")`); err != nil {
		t.Fatalf("failed to call trim: %v", err)
	}
	if L.GetGlobal("result").String() != "hello" {
		t.Errorf("trim = %q, want 'hello'", L.GetGlobal("result").String())
	}

	if err := L.DoString(`result = chainmerge.transforms.trim("")`); err != nil {
		t.Fatalf("failed to call trim: %v", err)
	}
	if L.GetGlobal("result").String() != "" {
		t.Errorf("trim = %q, want ''", L.GetGlobal("result").String())
	}
}

func TestTransformStrings(t *testing.T) {
	L := lua.NewState()
	defer L.Close()
	RegisterTransforms(L)

	tests := []struct {
		code string
		want string
	}{
		{`result = chainmerge.transforms.lower("Cracker BARREL")`, "cracker barrel"},
		{`result = chainmerge.transforms.upper("tn")`, "TN"},
		{`result = clean_spaces("  4501   Old  Hickory Blvd ")`, "4501 Old Hickory Blvd"},
		{`result = chainmerge.transforms.truncate("Lebanon", 3)`, "Leb"},
		{`result = chainmerge.transforms.truncate("Lebanon", 30)`, "Lebanon"},
	}

	for _, tt := range tests {
		if err := L.DoString(tt.code); err != nil {
			t.Fatalf("%s: %v", tt.code, err)
		}
		if got := L.GetGlobal("result").String(); got != tt.want {
			t.Errorf("%s = %q, want %q", tt.code, got, tt.want)
		}
	}
}

func TestFormatPhone(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"(615) 444-5533", "+1-615-444-5533"},
		{"615.444.5533", "+1-615-444-5533"},
		{"1-615-444-5533", "+1-615-444-5533"},
		{"444-5533", "444-5533"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := FormatPhone(tt.in); got != tt.want {
			t.Errorf("FormatPhone(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTransformParseReal(t *testing.T) {
	L := lua.NewState()
	defer L.Close()
	RegisterTransforms(L)

	if err := L.DoString(`result = chainmerge.transforms.parse_real(" 36.1627 ")`); err != nil {
		t.Fatalf("failed to call parse_real: %v", err)
	}
	if v, ok := L.GetGlobal("result").(lua.LNumber); !ok || float64(v) != 36.1627 {
		t.Errorf("parse_real = %v, want 36.1627", L.GetGlobal("result"))
	}

	if err := L.DoString(`result = chainmerge.transforms.parse_real("north")`); err != nil {
		t.Fatalf("failed to call parse_real: %v", err)
	}
	if L.GetGlobal("result") != lua.LNil {
		t.Errorf("parse_real(invalid) = %v, want nil", L.GetGlobal("result"))
	}
}

func TestTransformParseClock(t *testing.T) {
	L := lua.NewState()
	defer L.Close()
	RegisterTransforms(L)

	if err := L.DoString(`result = chainmerge.transforms.parse_clock("7:00 PM")`); err != nil {
		t.Fatalf("failed to call parse_clock: %v", err)
	}
	if got := L.GetGlobal("result").String(); got != "19:00" {
		t.Errorf("parse_clock = %q, want %q", got, "19:00")
	}

	if err := L.DoString(`result, msg = chainmerge.transforms.parse_clock("late")`); err != nil {
		t.Fatalf("failed to call parse_clock: %v", err)
	}
	if L.GetGlobal("result") != lua.LNil || L.GetGlobal("msg").Type() != lua.LTString {
		t.Errorf("parse_clock(invalid) = %v, %v", L.GetGlobal("result"), L.GetGlobal("msg"))
	}
}

func TestTransformOpeningHours(t *testing.T) {
	L := lua.NewState()
	defer L.Close()
	RegisterTransforms(L)

	code := `
		local week = {}
		for _, day in ipairs({"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}) do
			week[day] = {"07:00", "22:00"}
		end
		week.friday = {"07:00", "23:00"}
		week.saturday = {"07:00", "23:00"}
		result = opening_hours(week)
	`
	if err := L.DoString(code); err != nil {
		t.Fatalf("failed to call opening_hours: %v", err)
	}
	want := "Su-Th 07:00-22:00; Fr-Sa 07:00-23:00"
	if got := L.GetGlobal("result").String(); got != want {
		t.Errorf("opening_hours = %q, want %q", got, want)
	}

	if err := L.DoString(`result = opening_hours({sunday = {"07:00", "22:00"}})`); err == nil {
		t.Error("expected error for incomplete week")
	}
}

func TestTransformSplitAddress(t *testing.T) {
	L := lua.NewState()
	defer L.Close()
	RegisterTransforms(L)

	if err := L.DoString(`num, street = chainmerge.transforms.split_address("123 Main St")`); err != nil {
		t.Fatalf("failed to call split_address: %v", err)
	}
	if L.GetGlobal("num").String() != "123" || L.GetGlobal("street").String() != "Main St" {
		t.Errorf("split_address = %v, %v", L.GetGlobal("num"), L.GetGlobal("street"))
	}

	if err := L.DoString(`num, street = chainmerge.transforms.split_address("Plaza")`); err != nil {
		t.Fatalf("failed to call split_address: %v", err)
	}
	if L.GetGlobal("num").String() != "Plaza" || L.GetGlobal("street") != lua.LNil {
		t.Errorf("split_address = %v, %v", L.GetGlobal("num"), L.GetGlobal("street"))
	}
}
