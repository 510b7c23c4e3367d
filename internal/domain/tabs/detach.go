package tabs

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

type reservationState int

const (
	reservationPending reservationState = iota
	reservationCommitted
	reservationAborted
)

// Reservation is the token of an optimistic detach: the tab has left the
// store but the host has not yet confirmed the new window.
type Reservation struct {
	store     *Store
	tab       Tab
	index     int
	wasActive bool
	state     reservationState
}

// Tab returns the reserved tab.
func (r *Reservation) Tab() Tab {
	return r.tab
}

// Reserve removes a tab from the store ahead of a host call. The home tab is
// rejected before anything changes.
func (s *Store) Reserve(id string) (*Reservation, error) {
	if id == HomeID {
		return nil, ErrPinnedTab
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrTabNotFound, id)
	}

	wasActive := s.activeID == id
	tab, _ := s.removeAt(i)

	return &Reservation{
		store:     s,
		tab:       tab,
		index:     i,
		wasActive: wasActive,
	}, nil
}

// Commit finalises a reservation once the host confirmed the new window.
func (s *Store) Commit(r *Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.settle(r); err != nil {
		return err
	}
	r.state = reservationCommitted
	return nil
}

// Abort compensates a failed detach by putting the original tab back where
// it was, restoring the selection if the tab was active. The tab returns to
// its original index rather than the end of the store, so an aborted detach
// leaves the store exactly as it was before Reserve.
func (s *Store) Abort(r *Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.settle(r); err != nil {
		return err
	}
	r.state = reservationAborted

	// A tab with the same id may have arrived meanwhile (e.g. a reattach);
	// ids stay unique, so the original is dropped in that case.
	if s.indexOf(r.tab.ID) >= 0 {
		s.logger.Warn("Tab reappeared during detach, keeping the newer copy",
			zap.String("tab", r.tab.ID))
		return nil
	}

	s.insertAt(r.index, r.tab)
	if r.wasActive {
		s.activeID = r.tab.ID
	}
	return nil
}

// settle must be called with mu held.
func (s *Store) settle(r *Reservation) error {
	if r == nil || r.store != s {
		return ErrForeignReservation
	}
	if r.state != reservationPending {
		return ErrReservationSettled
	}
	return nil
}

// OpenWindowFunc asks the host runtime for a new window owning the tab.
type OpenWindowFunc func(ctx context.Context, info Info, pos Position) error

// Detach moves a tab out of this window. The tab is reserved immediately,
// the host is asked for a window, and the reservation is committed on
// success or aborted on failure.
func (s *Store) Detach(ctx context.Context, id string, pos Position, open OpenWindowFunc) error {
	r, err := s.Reserve(id)
	if err != nil {
		return err
	}

	if err := open(ctx, r.Tab().Info().Transferred(), pos); err != nil {
		if abortErr := s.Abort(r); abortErr != nil {
			s.logger.Error("Failed to compensate detach", zap.String("tab", id), zap.Error(abortErr))
		}
		s.logger.Warn("Detach failed, tab restored", zap.String("tab", id), zap.Error(err))
		return fmt.Errorf("detach %s: %w", id, err)
	}

	return s.Commit(r)
}
