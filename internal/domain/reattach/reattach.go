package reattach

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/anafis/workspace/internal/domain/tabs"
	"github.com/anafis/workspace/internal/shared/id"
)

var (
	ErrNotDetached = errors.New("reattach is only available in a detached window")
	ErrNoTab       = errors.New("detached window holds no tab")
)

// Sender asks the host runtime to deliver a tab identity to the main window.
type Sender interface {
	SendTabToMain(ctx context.Context, info tabs.Info) error
}

// CloseFunc closes the calling window.
type CloseFunc func(ctx context.Context) error

// Source is the detached window's store as seen by the Reattacher.
type Source interface {
	Tabs() []tabs.Tab
	ActiveID() string
	Remove(id string) bool
}

// Reattacher sends a detached window's active tab back to the main window
// and closes the detached window once it is empty. Tabs dropped into the
// window keep it open. It never retries: a failed send leaves the window and
// its tab untouched so the user can try again.
type Reattacher struct {
	window    id.WindowID
	store     Source
	sender    Sender
	closeSelf CloseFunc
	timeout   time.Duration
	logger    *zap.Logger
}

// NewReattacher creates a reattacher for window. closeSelf may be nil when
// the host closes the sender itself.
func NewReattacher(window id.WindowID, store Source, sender Sender, closeSelf CloseFunc, logger *zap.Logger) *Reattacher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reattacher{
		window:    window,
		store:     store,
		sender:    sender,
		closeSelf: closeSelf,
		logger:    logger,
	}
}

// WithTimeout bounds the host call. Zero means no bound beyond ctx.
func (r *Reattacher) WithTimeout(d time.Duration) *Reattacher {
	r.timeout = d
	return r
}

// Reattach moves the window's tab to the main window. It returns the identity
// that was sent.
func (r *Reattacher) Reattach(ctx context.Context) (tabs.Info, error) {
	if r.window.IsMain() {
		return tabs.Info{}, ErrNotDetached
	}

	tab, ok := r.current()
	if !ok {
		return tabs.Info{}, ErrNoTab
	}
	info := tab.Info().Transferred()

	sendCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	if err := r.sender.SendTabToMain(sendCtx, info); err != nil {
		r.logger.Warn("Reattach abandoned, window stays open",
			zap.String("window_id", r.window.String()),
			zap.String("tab", info.ID),
			zap.Error(err),
		)
		return tabs.Info{}, fmt.Errorf("send tab %s to main window: %w", info.ID, err)
	}

	r.store.Remove(info.ID)
	r.logger.Info("Tab sent to main window",
		zap.String("window_id", r.window.String()),
		zap.String("tab", info.ID),
		zap.Uint64("version", info.Version),
	)

	if left := len(r.store.Tabs()); left > 0 {
		r.logger.Debug("Detached window keeps its other tabs",
			zap.String("window_id", r.window.String()),
			zap.Int("tabs", left),
		)
		return info, nil
	}

	if r.closeSelf != nil {
		if err := r.closeSelf(ctx); err != nil {
			// The tab already belongs to the main window.
			r.logger.Warn("Failed to close detached window after reattach",
				zap.String("window_id", r.window.String()),
				zap.Error(err),
			)
		}
	}
	return info, nil
}

// current picks the active tab, or the first one when none is active.
func (r *Reattacher) current() (tabs.Tab, bool) {
	all := r.store.Tabs()
	if len(all) == 0 {
		return tabs.Tab{}, false
	}
	active := r.store.ActiveID()
	for _, t := range all {
		if t.ID == active {
			return t, true
		}
	}
	return all[0], true
}
