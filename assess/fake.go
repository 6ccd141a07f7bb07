package assess

import "context"

// Fake is an Assessor for tests and the headless check mode. It
// returns canned results in submission order, then repeats the last.
type Fake struct {
	Results []*Result
	Errs    []error
	Calls   int
}

func (f *Fake) Assess(ctx context.Context, wav []byte, referenceText, locale string) (*Result, error) {
	i := f.Calls
	f.Calls++
	if i >= len(f.Results) && len(f.Results) > 0 {
		i = len(f.Results) - 1
	}
	var err error
	if i < len(f.Errs) {
		err = f.Errs[i]
	}
	if err != nil {
		return nil, err
	}
	if i < len(f.Results) {
		return f.Results[i], nil
	}
	overall := 85.0
	return &Result{Overall: &overall, Recognized: referenceText}, nil
}

// Scored builds a Result with every metric set to v. Test helper.
func Scored(v float64) *Result {
	o, a, fl, c, p := v, v, v, v, v
	return &Result{Overall: &o, Accuracy: &a, Fluency: &fl, Completeness: &c, Prosody: &p}
}
