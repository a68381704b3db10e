package bridge

import (
	"context"
	"errors"
)

// Scoped runs use between acquire and release. Once acquire succeeds,
// release runs on every exit path, including panics in use, with a context
// that keeps ctx's values but not its cancellation. Errors from use and
// release are joined. If acquire fails neither use nor release runs.
func Scoped[R any](
	ctx context.Context,
	acquire func(context.Context) (R, error),
	use func(context.Context, R) error,
	release func(context.Context, R) error,
) (err error) {
	res, err := acquire(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if relErr := release(context.WithoutCancel(ctx), res); relErr != nil {
			err = errors.Join(err, relErr)
		}
	}()
	return use(ctx, res)
}
