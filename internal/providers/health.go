package providers

import "context"

// VersionChecker is implemented by providers backed by a server that can
// report its version.
type VersionChecker interface {
	Version(ctx context.Context) (string, error)
}

// Health is the reachability of one registered provider. Checked is false
// for providers with nothing to contact ahead of a call.
type Health struct {
	ID      string `json:"id"`
	Checked bool   `json:"checked"`
	Version string `json:"version,omitempty"`
	Error   string `json:"error,omitempty"`
}

// CheckHealth contacts every provider that implements VersionChecker, in
// registration order.
func (r *Registry) CheckHealth(ctx context.Context) []Health {
	out := make([]Health, 0, len(r.order))
	for _, id := range r.order {
		h := Health{ID: id}
		if vc, ok := r.providers[id].(VersionChecker); ok {
			h.Checked = true
			v, err := vc.Version(ctx)
			if err != nil {
				h.Error = err.Error()
			} else {
				h.Version = v
			}
		}
		out = append(out, h)
	}
	return out
}

// Healthy reports whether no checked provider failed.
func Healthy(hs []Health) bool {
	for _, h := range hs {
		if h.Error != "" {
			return false
		}
	}
	return true
}
