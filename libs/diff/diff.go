package diff

import (
	"math"
	"reflect"

	odiff "github.com/r3labs/diff/v3"
)

// CentTolerance is the largest float difference still treated as equal money.
const CentTolerance = 0.005

func GetCustomDiffer() *odiff.Differ {
	ret, err := odiff.NewDiffer(odiff.CustomValueDiffers(&AmountComparer{}))
	if err != nil {
		panic(err)
	}
	return ret
}

// Changed reports whether a and b differ by more than rounding noise.
func Changed(differ *odiff.Differ, a, b any) (bool, error) {
	cl, err := differ.Diff(a, b)
	if err != nil {
		return true, err
	}
	return len(cl) > 0, nil
}

// AmountComparer compares float64 values as money: differences under a
// cent are not changes.
type AmountComparer struct{}

var (
	floatType = reflect.TypeOf(float64(0))
)

// Match check is field match this custom type
func (c AmountComparer) Match(a, b reflect.Value) bool {
	aok := a.Kind() == floatType.Kind()
	bok := b.Kind() == floatType.Kind()
	return (aok && bok) || (a.Kind() == reflect.Invalid && bok) || (b.Kind() == reflect.Invalid && aok)
}

// Diff records an update when the amounts are a cent or more apart.
func (c AmountComparer) Diff(_ odiff.DiffType, _ odiff.DiffFunc, cl *odiff.Changelog, path []string, a reflect.Value, b reflect.Value, _ interface{}) error {
	valA := reflect.Indirect(a)
	valB := reflect.Indirect(b)

	// a missing side is always a change
	if !valA.IsValid() || !valB.IsValid() {
		if valA.IsValid() != valB.IsValid() {
			cl.Add(odiff.UPDATE, path, exported(valA), exported(valB))
		}
		return nil
	}

	f1, f2 := valA.Float(), valB.Float()
	if math.Abs(f1-f2) >= CentTolerance {
		cl.Add(odiff.UPDATE, path, f1, f2)
	}
	return nil
}

func exported(v reflect.Value) any {
	if !v.IsValid() {
		return nil
	}
	return v.Float()
}

// InsertParentDiffer is a no-op: amounts are leaves.
func (c AmountComparer) InsertParentDiffer(_ func(path []string, a reflect.Value, b reflect.Value, p interface{}) error) {
}
