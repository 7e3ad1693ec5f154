package checkout

import (
	"fmt"
	"net/url"
	"strconv"
)

// Step is the wizard position. It is persisted in the URL query so reloads and
// browser navigation keep the position.
type Step int

const (
	StepDetails    Step = 1
	StepPayment    Step = 2
	StepCompletion Step = 3
)

// StepQueryKey is the URL query parameter carrying the step.
const StepQueryKey = "step"

func (s Step) String() string {
	switch s {
	case StepDetails:
		return "details"
	case StepPayment:
		return "payment"
	case StepCompletion:
		return "completion"
	default:
		return fmt.Sprintf("step(%d)", int(s))
	}
}

// Valid reports whether s is one of the three steps.
func (s Step) Valid() bool {
	return s >= StepDetails && s <= StepCompletion
}

// ParseStep parses the integer form used in URLs.
func ParseStep(raw string) (Step, error) {
	n, err := strconv.Atoi(raw)
	if err != nil || !Step(n).Valid() {
		return 0, fmt.Errorf("%w: %q", ErrInvalidStep, raw)
	}
	return Step(n), nil
}

// StepFromQuery reads the step from q. ok is false when it is absent.
func StepFromQuery(q url.Values) (step Step, ok bool, err error) {
	raw := q.Get(StepQueryKey)
	if raw == "" {
		return 0, false, nil
	}
	step, err = ParseStep(raw)
	return step, err == nil, err
}

// Location returns path with the step in its query, e.g. "/checkout/abc?step=2".
func Location(path string, step Step) string {
	q := url.Values{}
	q.Set(StepQueryKey, strconv.Itoa(int(step)))
	return path + "?" + q.Encode()
}
