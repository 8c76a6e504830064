package vm

import "github.com/ethereum/go-ethereum/common"

// Executor picks between local and on-chain execution for a given program
// address, preferring the local copy and falling back to the chain reader
// on any error — grounded on spec.md §9's design note: "falling back to
// the chain reader on any error".
type Executor struct {
	Local   *LocalRegistry
	Caller  ContractCaller
}

// Program returns the local program registered at addr if one exists,
// otherwise an OnchainProgram bound to addr via Caller.
func (e *Executor) Program(addr common.Address) Program {
	if p, ok := e.Local.Lookup(addr); ok {
		return p
	}
	return &OnchainProgram{Addr: addr, Caller: e.Caller}
}

// Create runs Create against the local program at addr if registered,
// falling back to the on-chain read on any error from the local call.
func (e *Executor) Create(addr common.Address, initialState []byte) (bool, error) {
	if p, ok := e.Local.Lookup(addr); ok {
		ok, err := p.Create(initialState)
		if err == nil {
			return ok, nil
		}
	}
	return (&OnchainProgram{Addr: addr, Caller: e.Caller}).Create(initialState)
}

// Resolve runs Resolve the same way Create does: local-first, on-chain
// fallback on error.
func (e *Executor) Resolve(addr common.Address, initialState, resolver []byte) (BalanceSplit, error) {
	if p, ok := e.Local.Lookup(addr); ok {
		split, err := p.Resolve(initialState, resolver)
		if err == nil {
			return split, nil
		}
	}
	return (&OnchainProgram{Addr: addr, Caller: e.Caller}).Resolve(initialState, resolver)
}
