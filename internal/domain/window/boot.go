package window

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/anafis/workspace/internal/domain/tabs"
)

// Boot parameter names carried in a detached window's URL.
const (
	ParamDetached   = "detached"
	ParamTabID      = "tabId"
	ParamTabType    = "tabType"
	ParamTabTitle   = "tabTitle"
	ParamTabVersion = "tabVersion"
)

var ErrNotDetachedBoot = errors.New("boot parameters do not describe a detached window")

// BootParams is the identity a detached window receives from its creator.
type BootParams struct {
	Detached bool
	Tab      tabs.Info
}

// Query encodes the parameters as a URL query string. Keys keep their
// documented order and spaces are written as %20.
func (p BootParams) Query() string {
	pairs := [][2]string{
		{ParamDetached, strconv.FormatBool(p.Detached)},
		{ParamTabID, p.Tab.ID},
		{ParamTabType, string(p.Tab.ContentType)},
		{ParamTabTitle, p.Tab.Title},
	}
	if p.Tab.Version > 0 {
		pairs = append(pairs, [2]string{ParamTabVersion, strconv.FormatUint(p.Tab.Version, 10)})
	}

	var b strings.Builder
	for i, kv := range pairs {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(kv[0])
		b.WriteByte('=')
		b.WriteString(escape(kv[1]))
	}
	return b.String()
}

func escape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// URL appends the parameters to a page path.
func (p BootParams) URL(page string) string {
	return page + "?" + p.Query()
}

// ParseBootParams reads boot parameters from a full URL, a page path with a
// query, or a bare query string.
func ParseBootParams(raw string) (BootParams, error) {
	query := raw
	if i := strings.IndexByte(raw, '?'); i >= 0 {
		query = raw[i+1:]
	}

	v, err := url.ParseQuery(query)
	if err != nil {
		return BootParams{}, fmt.Errorf("failed to parse boot parameters: %w", err)
	}

	p := BootParams{Detached: v.Get(ParamDetached) == "true"}
	if !p.Detached {
		return p, nil
	}

	ct, err := tabs.ParseContentType(v.Get(ParamTabType))
	if err != nil {
		return BootParams{}, err
	}
	p.Tab = tabs.Info{
		ID:          v.Get(ParamTabID),
		Title:       v.Get(ParamTabTitle),
		ContentType: ct,
	}
	if s := v.Get(ParamTabVersion); s != "" {
		if p.Tab.Version, err = strconv.ParseUint(s, 10, 64); err != nil {
			return BootParams{}, fmt.Errorf("invalid %s: %w", ParamTabVersion, err)
		}
	}
	if err := p.Tab.Validate(); err != nil {
		return BootParams{}, err
	}
	if p.Tab.ID == tabs.HomeID {
		return BootParams{}, tabs.ErrPinnedTab
	}
	return p, nil
}

// BootStore builds the fresh store of a detached window. It holds exactly
// the one tab named by the boot parameters.
func BootStore(p BootParams, factory tabs.ContentFactory, store *tabs.Store) error {
	if !p.Detached {
		return ErrNotDetachedBoot
	}
	if store.Len() != 0 {
		return errors.New("detached window store must start empty")
	}
	store.Add(p.Tab.Materialize(factory))
	return nil
}
