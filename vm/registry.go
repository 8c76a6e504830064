package vm

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// LocalRegistry is the "local bytecode mode" of spec.md §4.6. No bytecode
// format is specified anywhere in the pack or in spec.md itself beyond
// "pure sandboxed VM"; go-ethereum's full EVM interpreter is far beyond the
// needs of a two-party condition host, so LocalRegistry implements "local"
// as a deterministic native Go function registered ahead of time and keyed
// by the program's on-chain address (see DESIGN.md's Open Questions).
type LocalRegistry struct {
	mu       sync.RWMutex
	programs map[common.Address]Program
}

// NewLocalRegistry returns an empty registry; programs, including the
// built-in Hashlock, are installed with Register.
func NewLocalRegistry() *LocalRegistry {
	return &LocalRegistry{programs: make(map[common.Address]Program)}
}

// Register installs program at addr. Re-registering an address overwrites
// the previous program.
func (r *LocalRegistry) Register(addr common.Address, program Program) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.programs[addr] = program
}

// Lookup returns the program registered at addr, if any.
func (r *LocalRegistry) Lookup(addr common.Address) (Program, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.programs[addr]
	return p, ok
}

var _ Program = (*boundProgram)(nil)

type boundProgram struct {
	addr common.Address
	reg  *LocalRegistry
}

func (b *boundProgram) resolve() (Program, error) {
	p, ok := b.reg.Lookup(b.addr)
	if !ok {
		return nil, fmt.Errorf("vm: no local program registered at %s", b.addr.Hex())
	}
	return p, nil
}

func (b *boundProgram) Create(initialState []byte) (bool, error) {
	p, err := b.resolve()
	if err != nil {
		return false, err
	}
	return p.Create(initialState)
}

func (b *boundProgram) Resolve(initialState, resolver []byte) (BalanceSplit, error) {
	p, err := b.resolve()
	if err != nil {
		return BalanceSplit{}, err
	}
	return p.Resolve(initialState, resolver)
}

// Bind returns a Program that dispatches to whatever is currently
// registered at addr, looked up lazily on each call.
func (r *LocalRegistry) Bind(addr common.Address) Program {
	return &boundProgram{addr: addr, reg: r}
}
