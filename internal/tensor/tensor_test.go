package tensor

import (
	"math"
	"math/rand"
	"testing"
)

func TestNewDense_ZeroFilled(t *testing.T) {
	x := NewDense(Shape{2, 3})
	if x.NumElements() != 6 {
		t.Fatalf("expected 6 elements, got %d", x.NumElements())
	}
	for i, v := range x.Data() {
		if v != 0 {
			t.Errorf("element %d: got %v, want 0", i, v)
		}
	}
}

func TestFromSlice_LengthMismatch(t *testing.T) {
	if _, err := FromSlice([]float64{1, 2, 3}, Shape{2, 2}); err == nil {
		t.Fatal("expected error for mismatched data length")
	}
}

func TestAtSet(t *testing.T) {
	x := NewDense(Shape{2, 3, 4})
	x.Set(7.5, 1, 2, 3)
	if got := x.At(1, 2, 3); got != 7.5 {
		t.Errorf("At(1,2,3): got %v, want 7.5", got)
	}
	if got := x.Data()[1*12+2*4+3]; got != 7.5 {
		t.Errorf("row-major offset: got %v, want 7.5", got)
	}
}

func TestReshape_PreservesOrder(t *testing.T) {
	x, err := FromSlice([]float64{1, 2, 3, 4, 5, 6}, Shape{2, 3})
	if err != nil {
		t.Fatal(err)
	}
	y := x.Reshape(Shape{3, 2})
	if y.At(2, 1) != 6 {
		t.Errorf("reshape: got %v, want 6", y.At(2, 1))
	}
	// Reshape must not alias the source.
	y.Data()[0] = 99
	if x.Data()[0] == 99 {
		t.Error("reshape shares storage with source")
	}
}

func TestPermute_Transpose(t *testing.T) {
	x, _ := FromSlice([]float64{1, 2, 3, 4, 5, 6}, Shape{2, 3})
	y := x.T()
	if !y.Shape().Equal(Shape{3, 2}) {
		t.Fatalf("transpose shape: got %v", y.Shape())
	}
	for i := 0; i < 2; i++ {
		for j := 0; j < 3; j++ {
			if x.At(i, j) != y.At(j, i) {
				t.Errorf("transpose mismatch at (%d,%d)", i, j)
			}
		}
	}
}

func TestMoveAxis(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	x := Rand(Shape{2, 3, 4}, rng)
	y := x.MoveAxis(2, 0)
	if !y.Shape().Equal(Shape{4, 2, 3}) {
		t.Fatalf("moveaxis shape: got %v", y.Shape())
	}
	if x.At(1, 2, 3) != y.At(3, 1, 2) {
		t.Error("moveaxis element mismatch")
	}
}

func TestUnfoldFold_RoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	x := Rand(Shape{3, 4, 5}, rng)
	for mode := 0; mode < 3; mode++ {
		u := Unfold(x, mode)
		if !u.Shape().Equal(Shape{x.Shape()[mode], 60 / x.Shape()[mode]}) {
			t.Fatalf("mode %d unfolding shape: got %v", mode, u.Shape())
		}
		back := Fold(u, mode, x.Shape())
		for i := range x.Data() {
			if x.Data()[i] != back.Data()[i] {
				t.Fatalf("mode %d fold does not invert unfold", mode)
			}
		}
	}
}

func TestUnfold_KnownLayout(t *testing.T) {
	// x[i,j] laid out row-major; the mode-1 unfolding has the columns of x
	// as rows.
	x, _ := FromSlice([]float64{1, 2, 3, 4, 5, 6}, Shape{2, 3})
	u := Unfold(x, 1)
	want := []float64{1, 4, 2, 5, 3, 6}
	for i, v := range want {
		if u.Data()[i] != v {
			t.Fatalf("mode-1 unfolding: got %v, want %v", u.Data(), want)
		}
	}
}

func TestConcat_Columns(t *testing.T) {
	a, _ := FromSlice([]float64{1, 2, 3, 4}, Shape{2, 2})
	b, _ := FromSlice([]float64{5, 6}, Shape{2, 1})
	c := Concat([]*Dense{a, b}, 1)
	if !c.Shape().Equal(Shape{2, 3}) {
		t.Fatalf("concat shape: got %v", c.Shape())
	}
	want := []float64{1, 2, 5, 3, 4, 6}
	for i, v := range want {
		if c.Data()[i] != v {
			t.Fatalf("concat layout: got %v, want %v", c.Data(), want)
		}
	}
}

func TestElementwiseOps(t *testing.T) {
	a, _ := FromSlice([]float64{1, -2, 3, -4}, Shape{2, 2})
	b, _ := FromSlice([]float64{2, 2, 2, 2}, Shape{2, 2})

	if got := Add(a, b).Data()[1]; got != 0 {
		t.Errorf("add: got %v, want 0", got)
	}
	if got := Mul(a, b).Data()[3]; got != -8 {
		t.Errorf("mul: got %v, want -8", got)
	}
	if got := Abs(a).Data()[1]; got != 2 {
		t.Errorf("abs: got %v, want 2", got)
	}
	if got := Scale(a, 0.5).Data()[2]; got != 1.5 {
		t.Errorf("scale: got %v, want 1.5", got)
	}
	if got := Sign(a).Data(); got[0] != 1 || got[1] != -1 {
		t.Errorf("sign: got %v", got)
	}
	if got := Sign(NewDense(Shape{1})).Data()[0]; got != 0 {
		t.Errorf("sign of zero: got %v, want 0", got)
	}
	if got := Sqrt(b).Data()[0]; math.Abs(got-math.Sqrt2) > 1e-15 {
		t.Errorf("sqrt: got %v, want sqrt(2)", got)
	}
}

func TestStack(t *testing.T) {
	a, _ := FromSlice([]float64{1, 2}, Shape{2})
	b, _ := FromSlice([]float64{3, 4}, Shape{2})
	s := Stack([]*Dense{a, b})
	if !s.Shape().Equal(Shape{2, 2}) {
		t.Fatalf("stack shape: got %v", s.Shape())
	}
	want := []float64{1, 2, 3, 4}
	for i, v := range want {
		if s.Data()[i] != v {
			t.Fatalf("stack layout: got %v, want %v", s.Data(), want)
		}
	}

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on shape mismatch")
		}
	}()
	Stack([]*Dense{a, NewDense(Shape{3})})
}

func TestBinaryOp_ShapeMismatchPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on shape mismatch")
		}
	}()
	Add(NewDense(Shape{2, 2}), NewDense(Shape{2, 3}))
}

func TestNorm(t *testing.T) {
	x, _ := FromSlice([]float64{3, 4}, Shape{2})
	if got := Norm(x); math.Abs(got-5) > 1e-12 {
		t.Errorf("norm: got %v, want 5", got)
	}
}

func TestMeanAxis(t *testing.T) {
	x, _ := FromSlice([]float64{1, 2, 3, 4, 5, 6}, Shape{2, 3})
	m := MeanAxis(x, 0)
	want := []float64{2.5, 3.5, 4.5}
	for i, v := range want {
		if math.Abs(m.Data()[i]-v) > 1e-12 {
			t.Fatalf("mean axis 0: got %v, want %v", m.Data(), want)
		}
	}

	v := MeanAxis(x.Reshape(Shape{6}), 0)
	if v.NDim() != 0 || math.Abs(v.Data()[0]-3.5) > 1e-12 {
		t.Errorf("mean over the only axis: got %v", v.Data())
	}
}

func TestDiag_Offsets(t *testing.T) {
	d := Diag([]float64{1, 2}, 1)
	if !d.Shape().Equal(Shape{3, 3}) {
		t.Fatalf("diag shape: got %v", d.Shape())
	}
	if d.At(0, 1) != 1 || d.At(1, 2) != 2 || d.At(0, 0) != 0 {
		t.Errorf("diag k=1 layout wrong: %v", d.Data())
	}

	d = Diag([]float64{1, 2}, -1)
	if d.At(1, 0) != 1 || d.At(2, 1) != 2 {
		t.Errorf("diag k=-1 layout wrong: %v", d.Data())
	}
}
