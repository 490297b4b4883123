package llmclient

import (
	"errors"
	"net"
	"testing"

	"github.com/openai/openai-go/v3"

	"github.com/faithleysath/aigmbot/internal/engineerr"
)

type fakeNetError struct{ timeout bool }

func (e *fakeNetError) Error() string   { return "fake net error" }
func (e *fakeNetError) Timeout() bool   { return e.timeout }
func (e *fakeNetError) Temporary() bool { return e.timeout }

var _ net.Error = (*fakeNetError)(nil)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want engineerr.LLMErrorClass
	}{
		{"rate limited", &openai.Error{StatusCode: 429}, engineerr.LLMTransient},
		{"server error", &openai.Error{StatusCode: 503}, engineerr.LLMTransient},
		{"unauthorized", &openai.Error{StatusCode: 401}, engineerr.LLMFatal},
		{"forbidden", &openai.Error{StatusCode: 403}, engineerr.LLMFatal},
		{"not found", &openai.Error{StatusCode: 404}, engineerr.LLMFatal},
		{"request timeout", &openai.Error{StatusCode: 408}, engineerr.LLMTransient},
		{"bad request", &openai.Error{StatusCode: 400}, engineerr.LLMFatal},
		{"network error", &fakeNetError{timeout: true}, engineerr.LLMTransient},
		{"unclassified", errors.New("boom"), engineerr.LLMTransient},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := classify(c.err)
			if got.Class != c.want {
				t.Errorf("classify(%v).Class = %v, want %v", c.err, got.Class, c.want)
			}
		})
	}
}
