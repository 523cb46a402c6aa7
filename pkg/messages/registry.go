package messages

import "github.com/backkem/pumpx2/pkg/message"

// Register adds the whole catalogue to r.
func Register(r *message.Registry) error {
	for _, group := range [][]message.Entry{
		authorizationEntries(),
		statusEntries(),
		controlEntries(),
		faultEntries(),
	} {
		for _, e := range group {
			if err := r.Register(e); err != nil {
				return err
			}
		}
	}
	return nil
}

// NewRegistry returns a registry holding the whole catalogue.
func NewRegistry() *message.Registry {
	r := message.NewRegistry()
	if err := Register(r); err != nil {
		panic(err)
	}
	return r
}
