package app

import (
	"context"
	"errors"

	"odds-value-alerts/internal/service"
)

// Poll runs a single monitoring cycle and prints its report. A persistence failure
// still prints the report before the error is returned.
func (a *App) Poll(ctx context.Context) error {
	rt, err := a.buildRuntime(ctx, runtimeOptions{})
	if err != nil {
		return err
	}
	defer rt.close()

	report, err := rt.service.Poll(ctx)
	if err != nil && !errors.Is(err, service.ErrPersistence) {
		return err
	}
	printReport(a.out, report)
	return err
}
