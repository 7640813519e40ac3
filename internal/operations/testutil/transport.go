package testutil

import (
	"context"
	"net/http"
	"sync"

	"github.com/tanaka-takurou/serverless-forecast-page-go/internal/pipeline"
	"github.com/tanaka-takurou/serverless-forecast-page-go/pkg/contracts/domain"
)

// Reply is one scripted transport answer
type Reply struct {
	Message string
	Err     error
}

// FakeTransport answers pipeline requests from per-action scripts. The last
// reply of a script repeats once the others are used up.
type FakeTransport struct {
	mu       sync.Mutex
	scripts  map[string][]Reply
	requests []domain.PipelineRequest

	// OnSend, when set, runs before the reply is chosen
	OnSend func(ctx context.Context, req domain.PipelineRequest)
}

// NewFakeTransport creates a transport with no scripts
func NewFakeTransport() *FakeTransport {
	return &FakeTransport{scripts: make(map[string][]Reply)}
}

// On appends replies to the script for action
func (f *FakeTransport) On(action string, replies ...Reply) *FakeTransport {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scripts[action] = append(f.scripts[action], replies...)
	return f
}

// OnMessage appends successful replies carrying msgs
func (f *FakeTransport) OnMessage(action string, msgs ...string) *FakeTransport {
	replies := make([]Reply, len(msgs))
	for i, m := range msgs {
		replies[i] = Reply{Message: m}
	}
	return f.On(action, replies...)
}

// OnError appends a pipeline error reply
func (f *FakeTransport) OnError(action string, status int, message string) *FakeTransport {
	return f.On(action, Reply{Err: &pipeline.Error{Action: action, StatusCode: status, Message: message}})
}

// Happy scripts a job that runs straight through and returns result
func (f *FakeTransport) Happy(startAction, jobID, result string) *FakeTransport {
	f.OnMessage(startAction, jobID)
	for _, a := range []string{
		domain.ActionCheckImport,
		domain.ActionCheckPredictor,
		domain.ActionCheckForecast,
		domain.ActionCheckExport,
	} {
		f.OnMessage(a, domain.MessageActive)
	}
	return f.OnMessage(domain.ActionGetResult, result)
}

// Send implements pipeline.Transport
func (f *FakeTransport) Send(ctx context.Context, req domain.PipelineRequest) (*domain.PipelineResponse, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	hook := f.OnSend
	f.mu.Unlock()

	if hook != nil {
		hook(ctx, req)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	script := f.scripts[req.Action]
	if len(script) == 0 {
		return nil, &pipeline.Error{Action: req.Action, StatusCode: http.StatusNotFound, Message: "no scripted reply"}
	}
	reply := script[0]
	if len(script) > 1 {
		f.scripts[req.Action] = script[1:]
	}

	if reply.Err != nil {
		return nil, reply.Err
	}
	return &domain.PipelineResponse{Message: reply.Message}, nil
}

// Requests returns every request received, in order
func (f *FakeTransport) Requests() []domain.PipelineRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.PipelineRequest, len(f.requests))
	copy(out, f.requests)
	return out
}

// Actions returns the action of every request received, in order
func (f *FakeTransport) Actions() []string {
	reqs := f.Requests()
	out := make([]string, len(reqs))
	for i, r := range reqs {
		out[i] = r.Action
	}
	return out
}
