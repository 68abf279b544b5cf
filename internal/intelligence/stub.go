package intelligence

import (
	"context"
	"sync"
	"time"
)

// stubDefaults answer each stage with an empty but schema-valid document.
// Offline runs get the full pipeline shape without a provider account.
var stubDefaults = map[string]string{
	"explore_page":     `{"siteSummary":"","confidence":0,"candidates":[],"paginationUrls":[]}`,
	"analyze_page":     `{"method":"css","confidence":0,"selectors":{}}`,
	"extract_vehicle":  `{"make":"","model":"","title":""}`,
	"validate_vehicle": `{"isValid":false,"completeness":0,"precision":0,"consistency":0,"qualityScore":0,"issues":["stub provider"],"likelyDuplicate":false,"recommendations":[]}`,
}

// Stub is an offline provider. Responses are keyed by request name;
// unscripted requests fall back to the stage's empty document.
type Stub struct {
	mu        sync.Mutex
	responses map[string][]string
	calls     []Request
	err       error
}

// NewStub creates a stub provider with default responses.
func NewStub() *Stub {
	return &Stub{responses: make(map[string][]string)}
}

// Script queues responses for the named request; they are consumed in
// order, after which the default answer applies again.
func (s *Stub) Script(name string, responses ...string) *Stub {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[name] = append(s.responses[name], responses...)
	return s
}

// Fail makes every subsequent call return err.
func (s *Stub) Fail(err error) *Stub {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
	return s
}

// Calls returns the requests seen so far.
func (s *Stub) Calls() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.calls))
	copy(out, s.calls)
	return out
}

func (s *Stub) Complete(_ context.Context, req Request) (*Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, req)
	if s.err != nil {
		return nil, s.err
	}

	content := stubDefaults[req.Name]
	if queued := s.responses[req.Name]; len(queued) > 0 {
		content = queued[0]
		s.responses[req.Name] = queued[1:]
	}

	return &Response{
		Content: content,
		Model:   "stub",
		Elapsed: time.Millisecond,
	}, nil
}

func (s *Stub) Name() string {
	return ProviderStub
}

func (s *Stub) Model() string {
	return "stub"
}

var _ Provider = (*Stub)(nil)
