// Package translationtest provides a scriptable translation.Translator for tests.
package translationtest

import (
	"context"
	"strings"
	"sync"

	"github.com/phrazzld/lingo-api/internal/translation"
)

// Fake is a Translator whose behaviour is set per test. The zero value
// upper-cases the content with confidence 0.9.
type Fake struct {
	// TranslateFunc, when set, replaces the default behaviour.
	TranslateFunc func(ctx context.Context, req translation.Request) (*translation.Result, error)

	mu       sync.Mutex
	requests []translation.Request
}

// Ensure Fake implements translation.Translator
var _ translation.Translator = (*Fake)(nil)

// Translate records the request and runs TranslateFunc or the default.
func (f *Fake) Translate(ctx context.Context, req translation.Request) (*translation.Result, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	fn := f.TranslateFunc
	f.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	return &translation.Result{
		TranslatedContent: strings.ToUpper(req.Content),
		Confidence:        0.9,
	}, nil
}

// Requests returns a copy of every request received so far.
func (f *Fake) Requests() []translation.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]translation.Request(nil), f.requests...)
}

// Calls returns the number of Translate calls.
func (f *Fake) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

// Blocking returns a TranslateFunc that waits until release is closed or ctx
// ends. started receives one value per call once the call is in flight.
func Blocking(started chan<- translation.Request, release <-chan struct{}) func(context.Context, translation.Request) (*translation.Result, error) {
	return func(ctx context.Context, req translation.Request) (*translation.Result, error) {
		if started != nil {
			started <- req
		}
		select {
		case <-release:
			return &translation.Result{TranslatedContent: "# " + req.Content, Confidence: 0.5}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
