package tape

import (
	"errors"
	"testing"
)

func TestNewTapeIsZeroed(t *testing.T) {
	tp := New(Checked)
	if tp.Cursor() != 0 {
		t.Errorf("Cursor = %d, want 0", tp.Cursor())
	}
	for i := 0; i < Size; i++ {
		if tp.Cell(i) != 0 {
			t.Fatalf("cell %d = %d, want 0", i, tp.Cell(i))
		}
	}
}

func TestCellWraparound(t *testing.T) {
	tp := New(Checked)
	tp.Set(42)
	for i := 0; i < 256; i++ {
		tp.Inc()
	}
	if tp.Get() != 42 {
		t.Errorf("after 256 increments cell = %d, want 42", tp.Get())
	}

	tp.Set(0)
	tp.Dec()
	if tp.Get() != 255 {
		t.Errorf("0 decremented = %d, want 255", tp.Get())
	}
	tp.Inc()
	if tp.Get() != 0 {
		t.Errorf("255 incremented = %d, want 0", tp.Get())
	}

	tp.Add(-3)
	if tp.Get() != 253 {
		t.Errorf("Add(-3) from 0 = %d, want 253", tp.Get())
	}
}

func TestMovePolicies(t *testing.T) {
	tests := []struct {
		policy BoundsPolicy
		start  int
		delta  int
		want   int
		fails  bool
	}{
		{Checked, 0, 1, 1, false},
		{Checked, 0, -1, 0, true},
		{Checked, Size - 1, 1, Size - 1, true},
		{Wrap, 0, -1, Size - 1, false},
		{Wrap, Size - 1, 1, 0, false},
		{Wrap, 5, 2 * Size, 5, false},
		{Clamp, 0, -1, 0, false},
		{Clamp, Size - 1, 1, Size - 1, false},
		{Clamp, 10, -20, 0, false},
	}
	for _, tc := range tests {
		got, err := Step(tc.policy, tc.start, tc.delta)
		if tc.fails {
			if !errors.Is(err, ErrTapeBounds) {
				t.Errorf("%v Step(%d, %d): err = %v, want ErrTapeBounds", tc.policy, tc.start, tc.delta, err)
			}
		} else if err != nil {
			t.Errorf("%v Step(%d, %d): unexpected error %v", tc.policy, tc.start, tc.delta, err)
		}
		if got != tc.want {
			t.Errorf("%v Step(%d, %d) = %d, want %d", tc.policy, tc.start, tc.delta, got, tc.want)
		}
	}
}

func TestCheckedMoveKeepsCursor(t *testing.T) {
	tp := New(Checked)
	err := tp.Move(-1)
	var be *BoundsError
	if !errors.As(err, &be) {
		t.Fatalf("Move(-1) err = %v, want *BoundsError", err)
	}
	if be.Cursor != 0 || be.Delta != -1 {
		t.Errorf("BoundsError = %+v, want cursor 0 delta -1", *be)
	}
	if tp.Cursor() != 0 {
		t.Errorf("Cursor = %d after failed move, want 0", tp.Cursor())
	}
}

func TestParsePolicy(t *testing.T) {
	for _, p := range []BoundsPolicy{Checked, Wrap, Clamp} {
		got, err := ParsePolicy(p.String())
		if err != nil || got != p {
			t.Errorf("ParsePolicy(%q) = %v, %v; want %v", p.String(), got, err, p)
		}
	}
	if got, err := ParsePolicy(""); err != nil || got != Checked {
		t.Errorf("ParsePolicy(\"\") = %v, %v; want checked", got, err)
	}
	if _, err := ParsePolicy("mirror"); err == nil {
		t.Error("expected error for unknown policy")
	}
}

func TestCells(t *testing.T) {
	tp := New(Wrap)
	tp.Inc()
	tp.Move(1)
	tp.Add(2)
	got := tp.Cells(3)
	want := []byte{1, 2, 0}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Cells(3)[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}
