package handlers

import (
	"context"

	"github.com/cuemby/agent-core/pkg/kvstore"
	"github.com/cuemby/agent-core/pkg/svcerr"
	"github.com/cuemby/agent-core/pkg/types"
)

const watchPrefix = "WatchConfig/"

// CreateWatch persists a subscription record naming a resource and a
// callback target. Delivery over that callback is out of scope here (no
// message-bus routing layer in this repo) — this only manages the
// durable record of who asked to be told.
func (h *Handlers) CreateWatch(ctx context.Context, req *types.CreateWatch) (*types.WatchConfig, error) {
	w := types.WatchConfigFromCreate(types.NewWatchID(), req)
	if err := h.reg.StoreObj(ctx, w.Key(), w); err != nil {
		return nil, svcerr.StoreSave(svcerr.ResourceWatch, string(w.ID), err)
	}
	return w, nil
}

// GetWatchers lists every persisted watch subscription, optionally
// narrowed to resourceID when non-empty.
func (h *Handlers) GetWatchers(ctx context.Context, resourceID string) ([]*types.WatchConfig, error) {
	raw, err := h.reg.ListPrefix(ctx, watchPrefix)
	if err != nil {
		return nil, svcerr.Store(err)
	}
	out := make([]*types.WatchConfig, 0, len(raw))
	for _, data := range raw {
		w := &types.WatchConfig{}
		if err := kvstore.UnmarshalStrict(data, w); err != nil {
			return nil, svcerr.Internal("corrupt watch config: " + err.Error())
		}
		if resourceID == "" || w.ResourceID == resourceID {
			out = append(out, w)
		}
	}
	return out, nil
}

// DeleteWatch removes a persisted watch subscription.
func (h *Handlers) DeleteWatch(ctx context.Context, id types.WatchID) error {
	if err := h.reg.DeleteKV(ctx, "WatchConfig/"+string(id)); err != nil {
		return svcerr.StoreSave(svcerr.ResourceWatch, string(id), err)
	}
	return nil
}
