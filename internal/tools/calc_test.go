package tools

import (
	"context"
	"splan/internal/object"
	"testing"
)

func callCalc(t *testing.T, expr string) (object.Value, error) {
	t.Helper()
	tool := &calcTool{}
	return tool.Call(context.Background(), Args{Positional: []object.Value{&object.String{Value: expr}}})
}

func calcPayload(t *testing.T, expr string) object.Value {
	t.Helper()
	val, err := callCalc(t, expr)
	if err != nil {
		t.Fatalf("calc(%q) failed: %v", expr, err)
	}
	return val.(*object.ToolResult).Payload
}

func TestCalcIntegers(t *testing.T) {
	tests := []struct {
		expr     string
		expected int64
	}{
		{"1+1", 2},
		{"2+3*4", 14},
		{"(2+3)*4", 20},
		{"10-4-3", 3},
		{"7%3", 1},
		{"2**8", 256},
		{"2*3**2", 18},
		{"2**3**2", 512},
		{"-5+2", -3},
		{"1 < 2", 1},
		{"5 >= 6", 0},
		{"3 == 3", 1},
	}

	for _, tt := range tests {
		payload := calcPayload(t, tt.expr)
		n, ok := payload.(*object.Integer)
		if !ok {
			t.Errorf("calc(%q) = %s (%s), want integer", tt.expr, payload.Inspect(), payload.Type())
			continue
		}
		if n.Value != tt.expected {
			t.Errorf("calc(%q) = %d, want %d", tt.expr, n.Value, tt.expected)
		}
	}
}

func TestCalcHugeExponents(t *testing.T) {
	// A giant exponent must neither busy-loop nor wrap an int64; it promotes
	// to float and returns promptly.
	tests := []string{
		"2**999999999999",
		"2**64",
		"3**40",
		"9223372036854775807**2",
	}
	for _, expr := range tests {
		payload := calcPayload(t, expr)
		if _, ok := payload.(*object.Float); !ok {
			t.Errorf("calc(%q) = %s (%s), want float", expr, payload.Inspect(), payload.Type())
		}
	}

	// The exact integer path still holds where int64 genuinely can.
	payload := calcPayload(t, "2**62")
	n, ok := payload.(*object.Integer)
	if !ok || n.Value != 1<<62 {
		t.Errorf("calc(2**62) = %s, want %d", payload.Inspect(), int64(1)<<62)
	}
}

func TestCalcFloats(t *testing.T) {
	tests := []struct {
		expr     string
		expected float64
	}{
		{"1.5+2", 3.5},
		{"10/4", 2.5},
		{"10/2", 5.0},
		{"2.0*3", 6.0},
	}

	for _, tt := range tests {
		payload := calcPayload(t, tt.expr)
		f, ok := payload.(*object.Float)
		if !ok {
			t.Errorf("calc(%q) = %s (%s), want float", tt.expr, payload.Inspect(), payload.Type())
			continue
		}
		if f.Value != tt.expected {
			t.Errorf("calc(%q) = %f, want %f", tt.expr, f.Value, tt.expected)
		}
	}
}

func TestCalcRejectsUnsafeInput(t *testing.T) {
	unsafe := []string{
		"__import__('os')",
		"eval(1)",
		"open('/etc/passwd')",
		"a+1",
		"",
	}
	for _, expr := range unsafe {
		if _, err := callCalc(t, expr); err == nil {
			t.Errorf("calc(%q) should have been rejected", expr)
		}
	}
}

func TestCalcErrors(t *testing.T) {
	bad := []string{
		"1/0",
		"5%0",
		"(1+2",
		"1+",
		"1 2",
	}
	for _, expr := range bad {
		if _, err := callCalc(t, expr); err == nil {
			t.Errorf("calc(%q) should have failed", expr)
		}
	}
}
