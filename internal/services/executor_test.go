package services

import (
	"context"
	"fmt"
)

// execResult scripts one command invocation for the fake executor.
type execResult struct {
	output []byte
	err    error
}

// fakeExecutor replays scripted results in order and records every call.
type fakeExecutor struct {
	results []execResult
	calls   [][]string
}

func (f *fakeExecutor) next(binary string, args []string) ([]byte, error) {
	call := append([]string{binary}, args...)
	f.calls = append(f.calls, call)
	if len(f.results) == 0 {
		return nil, fmt.Errorf("fake executor: unexpected call %v", call)
	}
	res := f.results[0]
	f.results = f.results[1:]
	return res.output, res.err
}

func (f *fakeExecutor) Run(_ context.Context, binary string, args ...string) ([]byte, error) {
	return f.next(binary, args)
}

func (f *fakeExecutor) Output(_ context.Context, binary string, args ...string) ([]byte, error) {
	return f.next(binary, args)
}
