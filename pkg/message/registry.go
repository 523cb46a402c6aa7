package message

import (
	"fmt"
	"sort"
	"sync"
)

// DecodeFunc decodes verified cargo into a typed message.
type DecodeFunc func(cargo []byte) (Message, error)

// Entry binds a message type's properties to its decoder.
type Entry struct {
	Props
	Decode DecodeFunc

	// Fault marks device fault reports, which may arrive in place of any
	// response on their channel.
	Fault bool
}

type registryKey struct {
	opcode  uint8
	channel Channel
}

// Registry maps (opcode, channel) to message codecs.
// It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries map[registryKey]Entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[registryKey]Entry)}
}

// Register adds an entry. Each (opcode, channel) may be registered once.
func (r *Registry) Register(e Entry) error {
	if !e.Channel.IsValid() {
		return fmt.Errorf("message: register opcode %d: invalid channel %d", e.Opcode, e.Channel)
	}
	if e.Decode == nil {
		return fmt.Errorf("message: register %s: nil decoder", e.Props)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	k := registryKey{e.Opcode, e.Channel}
	if _, ok := r.entries[k]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateMessage, e.Props)
	}
	r.entries[k] = e
	return nil
}

// MustRegister registers entries and panics on error. Intended for catalogue
// construction.
func (r *Registry) MustRegister(entries ...Entry) {
	for _, e := range entries {
		if err := r.Register(e); err != nil {
			panic(err)
		}
	}
}

// Lookup returns the entry for (opcode, channel).
func (r *Registry) Lookup(opcode uint8, ch Channel) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[registryKey{opcode, ch}]
	return e, ok
}

// Faults returns the fault entries registered on ch, ordered by opcode.
func (r *Registry) Faults(ch Channel) []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Entry
	for k, e := range r.entries {
		if k.channel == ch && e.Fault {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Opcode < out[j].Opcode })
	return out
}

// Decode decodes a verified envelope received on ch.
func (r *Registry) Decode(env *Envelope, ch Channel) (Message, error) {
	e, ok := r.Lookup(env.Header.Opcode, ch)
	if !ok {
		return nil, fmt.Errorf("%w: opcode %d on %s", ErrUnknownMessage, env.Header.Opcode, ch)
	}
	if len(env.Cargo) != e.Size {
		return nil, fmt.Errorf("%w: %s received %d bytes", ErrCargoLength, e.Props, len(env.Cargo))
	}
	return e.Decode(env.Cargo)
}

// Expect builds the reassembly expectation for the response to req, with
// fault reports on the same channel as alternates.
func (r *Registry) Expect(req Request, txID uint8) (Expectation, error) {
	props := req.Props()
	e, ok := r.Lookup(req.ResponseOpcode(), props.Channel)
	if !ok {
		return Expectation{}, fmt.Errorf("%w: response opcode %d on %s", ErrUnknownMessage, req.ResponseOpcode(), props.Channel)
	}
	return r.expectation(e, txID), nil
}

// ExpectRequest builds the expectation for an inbound request whose first
// packet carried header h on ch. Used by the peripheral side.
func (r *Registry) ExpectRequest(h Header, ch Channel) (Expectation, error) {
	e, ok := r.Lookup(h.Opcode, ch)
	if !ok || e.Direction != DirectionRequest {
		return Expectation{}, fmt.Errorf("%w: request opcode %d on %s", ErrUnknownMessage, h.Opcode, ch)
	}
	return Expectation{TxID: h.TxID, Opcode: e.Opcode, CargoLength: e.Size, Signed: e.Signed}, nil
}

func (r *Registry) expectation(e Entry, txID uint8) Expectation {
	exp := Expectation{
		TxID:        txID,
		Opcode:      e.Opcode,
		CargoLength: e.Size,
		Signed:      e.Signed,
	}
	for _, f := range r.Faults(e.Channel) {
		if f.Opcode == e.Opcode {
			continue
		}
		exp.Alternates = append(exp.Alternates, Alternate{Opcode: f.Opcode, CargoLength: f.Size, Signed: f.Signed})
	}
	return exp
}
