package journal

import (
	"context"
	"errors"
	"fmt"
)

// Multi saves to every store and loads from the first. Every store is
// attempted even when an earlier one fails.
type Multi []Store

func (m Multi) Save(ctx context.Context, s *State) error {
	var errs []error
	for i, st := range m {
		if err := st.Save(ctx, s); err != nil {
			errs = append(errs, fmt.Errorf("store %d (%T): %w", i, st, err))
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Load(ctx context.Context) (*State, error) {
	if len(m) == 0 {
		return nil, ErrNoState
	}
	return m[0].Load(ctx)
}

func (m Multi) Close() error {
	var errs []error
	for _, st := range m {
		if err := st.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
