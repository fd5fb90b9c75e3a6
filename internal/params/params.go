package params

import (
	"strconv"
	"strings"

	"github.com/nuclio/errors"
)

const (
	DefaultTargetURL         = "https://www.example.com/"
	DefaultTotalRequests     = 20
	DefaultRequestsPerSecond = 1
)

var (
	ErrInvalidURL   = errors.New("Invalid URL provided")
	ErrInvalidTotal = errors.New("Total requests must be a positive integer")
	ErrInvalidRate  = errors.New("Requests per second must be a positive integer")
)

// Parameters describe a single run. They are resolved once at startup.
type Parameters struct {
	TargetURL         string
	TotalRequests     int
	RequestsPerSecond int
}

// Resolve builds Parameters from the positional arguments
// [targetURL] [totalRequests] [requestsPerSecond]. Missing or empty
// arguments take their defaults. Validation runs in argument order and
// returns one of the Err* sentinels on the first failure.
func Resolve(args []string) (Parameters, error) {
	p := Parameters{
		TargetURL:         DefaultTargetURL,
		TotalRequests:     DefaultTotalRequests,
		RequestsPerSecond: DefaultRequestsPerSecond,
	}

	if v := arg(args, 0); v != "" {
		p.TargetURL = v
	}
	if !IsValidURL(p.TargetURL) {
		return Parameters{}, ErrInvalidURL
	}

	if v := arg(args, 1); v != "" {
		n, ok := positiveInt(v)
		if !ok {
			return Parameters{}, ErrInvalidTotal
		}
		p.TotalRequests = n
	}

	if v := arg(args, 2); v != "" {
		n, ok := positiveInt(v)
		if !ok {
			return Parameters{}, ErrInvalidRate
		}
		p.RequestsPerSecond = n
	}

	return p, nil
}

// RequestURL is TargetURL with an http scheme added when none was given.
func (p Parameters) RequestURL() string {
	lower := strings.ToLower(p.TargetURL)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return p.TargetURL
	}
	return "http://" + p.TargetURL
}

func arg(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}

func positiveInt(s string) (int, bool) {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
