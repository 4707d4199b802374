// loader Lambda runs one OAC load pass per invocation.
// Invoked by an EventBridge schedule (e.g. hourly).
package main

import (
	"context"
	"log/slog"
	"os"
	"sync"
	_ "time/tzdata"

	"github.com/aws/aws-lambda-go/events"
	awslambda "github.com/aws/aws-lambda-go/lambda"

	intlambda "github.com/dwsmith1983/oacload/internal/lambda"
	"github.com/dwsmith1983/oacload/pkg/types"
)

var version = "dev"

var (
	deps     *intlambda.Deps
	depsOnce sync.Once
	depsErr  error
)

func getDeps() (*intlambda.Deps, error) {
	depsOnce.Do(func() {
		deps, depsErr = intlambda.Init(context.Background(), version)
	})
	return deps, depsErr
}

func handler(ctx context.Context, event events.CloudWatchEvent) (*types.RunSummary, error) {
	d, err := getDeps()
	if err != nil {
		return nil, err
	}
	return intlambda.Handle(ctx, d, event)
}

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, nil)))
	awslambda.Start(handler)
}
