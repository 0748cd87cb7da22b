package extractor

import (
	"context"
	"os"
	"sync"
)

// Call records one invocation made through a FakeRunner
type Call struct {
	Name string
	Args []string
	// Files holds the contents of argument files that only exist while
	// the command runs
	Files map[string][]byte
}

// Login returns the username and password handed to the command through a
// credential file
func (c Call) Login() (username, password string) {
	for _, flag := range []string{"--netrc-location", "--config"} {
		if data, ok := c.Files[c.ArgAfter(flag)]; ok {
			return parseLogin(data)
		}
	}
	return "", ""
}

// HasArg reports whether the call included arg
func (c Call) HasArg(arg string) bool {
	for _, a := range c.Args {
		if a == arg {
			return true
		}
	}
	return false
}

// ArgAfter returns the value following flag, or ""
func (c Call) ArgAfter(flag string) string {
	for i := 0; i < len(c.Args)-1; i++ {
		if c.Args[i] == flag {
			return c.Args[i+1]
		}
	}
	return ""
}

// FakeRunner is a Runner for tests. Handler decides the result of each call.
type FakeRunner struct {
	Handler func(call Call) ([]byte, error)

	mu    sync.Mutex
	calls []Call
}

// Run records the call and delegates to Handler
func (f *FakeRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	call := Call{Name: name, Args: append([]string(nil), args...)}
	for _, flag := range []string{"--netrc-location", "--config"} {
		path := call.ArgAfter(flag)
		if path == "" {
			continue
		}
		if data, err := os.ReadFile(path); err == nil {
			if call.Files == nil {
				call.Files = make(map[string][]byte)
			}
			call.Files[path] = data
		}
	}
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.Handler == nil {
		return nil, nil
	}
	return f.Handler(call)
}

// Calls returns a copy of the recorded calls
func (f *FakeRunner) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}
