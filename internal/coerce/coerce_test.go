package coerce

import "testing"

func TestInt(t *testing.T) {
	tests := []struct {
		input string
		want  int
		ok    bool
	}{
		{"42", 42, true},
		{"0", 0, true},
		{"-7", -7, true},
		{" 13 ", 13, true},
		{"", 0, false},
		{"abc", 0, false},
		{"12.5", 0, false},
	}

	for _, tt := range tests {
		got, ok := Int(tt.input)
		if got != tt.want || ok != tt.ok {
			t.Errorf("Int(%q) = (%d, %v), want (%d, %v)", tt.input, got, ok, tt.want, tt.ok)
		}
	}
}

func TestIntOrZero(t *testing.T) {
	if got := IntOrZero("garbage"); got != 0 {
		t.Errorf("IntOrZero(garbage) = %d, want 0", got)
	}
	if got := IntOrZero("99"); got != 99 {
		t.Errorf("IntOrZero(99) = %d, want 99", got)
	}
}

func TestBool(t *testing.T) {
	tests := []struct {
		input string
		want  bool
		ok    bool
	}{
		{"True", true, true},
		{"False", false, true},
		{"true", true, true},
		{"FALSE", false, true},
		{"", false, false},
		{"1", false, false},
		{"yes", false, false},
	}

	for _, tt := range tests {
		got, ok := Bool(tt.input)
		if got != tt.want || ok != tt.ok {
			t.Errorf("Bool(%q) = (%v, %v), want (%v, %v)", tt.input, got, ok, tt.want, tt.ok)
		}
	}
}

func TestFloat(t *testing.T) {
	if got, ok := Float("3.5"); !ok || got != 3.5 {
		t.Errorf("Float(3.5) = (%v, %v)", got, ok)
	}
	if _, ok := Float("nope"); ok {
		t.Error("Float(nope) should not be ok")
	}
}
