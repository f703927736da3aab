// Package remotetest provides a recording remote.Executor for tests
package remotetest

import (
	"context"
	"strings"
	"sync"

	"github.com/catalystcommunity/bindeploy/internal/remote"
)

// Kind is the executor method a call went through
type Kind string

const (
	KindRun  Kind = "run"
	KindSudo Kind = "sudo"
	KindPut  Kind = "put"
)

// Call is one recorded executor call. For puts Command holds the remote path
// and Local the uploaded file.
type Call struct {
	Kind    Kind
	Command string
	Local   string
}

// Response is the canned outcome for commands matching a prefix
type Response struct {
	Result *remote.Result
	Err    error
}

// Recorder records every call and answers from canned responses
type Recorder struct {
	RemoteHost bool
	Password   bool

	// OnPut, when set, is invoked for every Put before it is recorded
	OnPut func(localPath, remotePath string) error

	mu        sync.Mutex
	calls     []Call
	responses map[string]Response
}

// New returns a Recorder that reports a remote host with a sudo credential
func New() *Recorder {
	return &Recorder{RemoteHost: true, Password: true, responses: make(map[string]Response)}
}

// Respond registers a canned response for commands starting with prefix
func (r *Recorder) Respond(prefix string, result *remote.Result, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responses[prefix] = Response{Result: result, Err: err}
}

// Calls returns a copy of the recorded calls
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Call, len(r.calls))
	copy(out, r.calls)
	return out
}

// Commands returns "<kind> <command>" strings for every call
func (r *Recorder) Commands() []string {
	calls := r.Calls()
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = string(c.Kind) + " " + c.Command
	}
	return out
}

func (r *Recorder) Remote() bool  { return r.RemoteHost }
func (r *Recorder) HasSudo() bool { return r.Password }

func (r *Recorder) Run(ctx context.Context, cmd string, opts ...remote.Option) (*remote.Result, error) {
	return r.exec(KindRun, cmd, opts)
}

func (r *Recorder) Sudo(ctx context.Context, cmd string, opts ...remote.Option) (*remote.Result, error) {
	return r.exec(KindSudo, cmd, opts)
}

func (r *Recorder) Put(ctx context.Context, localPath, remotePath string) error {
	if r.OnPut != nil {
		if err := r.OnPut(localPath, remotePath); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, Call{Kind: KindPut, Command: remotePath, Local: localPath})
	return nil
}

func (r *Recorder) exec(kind Kind, cmd string, opts []remote.Option) (*remote.Result, error) {
	r.mu.Lock()
	r.calls = append(r.calls, Call{Kind: kind, Command: cmd})

	var match Response
	longest := -1
	for prefix, resp := range r.responses {
		if strings.HasPrefix(cmd, prefix) && len(prefix) > longest {
			match, longest = resp, len(prefix)
		}
	}
	r.mu.Unlock()

	if match.Err != nil {
		return nil, match.Err
	}
	result := match.Result
	if result == nil {
		result = &remote.Result{}
	}
	if result.ExitCode != 0 && !remote.WarnSet(opts) {
		return result, result.Err(cmd)
	}
	return result, nil
}
