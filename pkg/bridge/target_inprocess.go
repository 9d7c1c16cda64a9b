package bridge

import (
	"context"
	"fmt"

	"statehydrate/pkg/hydrate"
)

// InProcess targets an application living in the test's own process. The
// Runner stands in for the application's load sequence: Navigate records
// the location on the shared BootstrapContext and then invokes it,
// typically to run a Bootstrapper.
type InProcess struct {
	Context *hydrate.BootstrapContext
	Runner  func(ctx context.Context) error
}

func (t *InProcess) PushToken(_ context.Context, token, replayKey string) error {
	t.Context.PushToken(token, replayKey)
	return nil
}

func (t *InProcess) ReadResult(context.Context) (*hydrate.Result, bool, error) {
	return t.Context.LoadResult()
}

func (t *InProcess) Navigate(ctx context.Context, rawurl string) error {
	if err := t.Context.SetLocation(rawurl); err != nil {
		return err
	}
	if t.Runner == nil {
		return fmt.Errorf("bridge: in-process target has no runner")
	}
	return t.Runner(ctx)
}
