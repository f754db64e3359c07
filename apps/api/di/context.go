package di

import (
	"context"
	"time"
)

const setupTimeout = 30 * time.Second

func newSetupContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), setupTimeout)
}
