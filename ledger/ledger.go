package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"go.uber.org/atomic"

	"github.com/tokengate/token-allowlist-backend/interfaces"
	"github.com/tokengate/token-allowlist-backend/program"
)

// maxAccountDataLen bounds a single account's data buffer. Registry accounts
// are far below this; the cap guards against malformed create requests.
const maxAccountDataLen = 10 * 1024 * 1024

var (
	// ErrMissingSignature is returned when an instruction declares a signer
	// for which the transaction carries no valid signature.
	ErrMissingSignature = errors.New("missing or invalid signer signature")

	// ErrUnknownProgram is returned when an instruction targets a program the
	// host does not know.
	ErrUnknownProgram = errors.New("unknown program")

	// ErrAccountNotFound is returned when a required account does not exist.
	ErrAccountNotFound = errors.New("account not found")

	// ErrAccountExists is returned when account creation targets an identity
	// that is already in use.
	ErrAccountExists = errors.New("account already exists")

	// ErrInsufficientFunds is returned when a transfer or funding exceeds the
	// source balance.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInvalidSystemInstruction is returned for malformed system
	// instruction payloads.
	ErrInvalidSystemInstruction = errors.New("invalid system instruction")
)

// account is the ledger-internal mutable account record.
type account struct {
	balance uint64
	data    []byte
}

// AccountState is a read-only copy of one account.
type AccountState struct {
	Balance uint64
	Data    []byte
}

// Metrics receives execution counters from the ledger. Satisfied by
// metrics.MetricsServer.
type Metrics interface {
	RecordTransaction(outcome string)
	RecordInstruction(opcode, outcome string)
	SetSlot(slot uint64)
}

// Config parameterizes a new ledger.
type Config struct {
	// Rent is the storage pricing published through the rent sysvar.
	// Zero value means program.DefaultRent.
	Rent program.Rent

	// Genesis seeds initial balances, keyed by identity.
	Genesis map[interfaces.Identity]uint64
}

// Ledger is an in-memory execution host for the registry program. It owns
// the account set, verifies transaction signatures, and executes instruction
// batches atomically. The host serializes calls that touch a common account,
// so a single lock is held for the duration of a transaction and programs
// perform no internal synchronization.
type Ledger struct {
	log       *slog.Logger
	processor *program.Processor
	rent      program.Rent

	mu       sync.RWMutex
	accounts map[interfaces.Identity]*account
	metrics  Metrics

	slot atomic.Uint64
}

// New creates a ledger with the rent sysvar seeded and genesis balances
// applied.
func New(log *slog.Logger, cfg Config) *Ledger {
	if log == nil {
		log = slog.Default()
	}

	rent := cfg.Rent
	if rent == (program.Rent{}) {
		rent = program.DefaultRent
	}

	l := &Ledger{
		log:       log,
		processor: program.NewProcessor(log),
		rent:      rent,
		accounts:  make(map[interfaces.Identity]*account),
	}

	l.accounts[program.RentSysvarID] = &account{balance: 1, data: rent.Pack()}
	for id, balance := range cfg.Genesis {
		l.accounts[id] = &account{balance: balance}
	}

	return l
}

// SetMetrics attaches an execution counter sink. Call before serving
// transactions; a nil sink disables recording.
func (l *Ledger) SetMetrics(m Metrics) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.metrics = m
}

// Rent returns the ledger's storage pricing.
func (l *Ledger) Rent() program.Rent {
	return l.rent
}

// Slot returns the number of committed transactions.
func (l *Ledger) Slot() uint64 {
	return l.slot.Load()
}

// GetAccount returns a copy of an account's state.
func (l *Ledger) GetAccount(key interfaces.Identity) (AccountState, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	acc, ok := l.accounts[key]
	if !ok {
		return AccountState{}, false
	}
	return AccountState{
		Balance: acc.balance,
		Data:    append([]byte(nil), acc.data...),
	}, true
}

// Submit verifies and executes a transaction. Instructions run in order;
// any failure rolls every touched account back to its pre-transaction state
// and returns the failing instruction's error.
func (l *Ledger) Submit(ctx context.Context, tx *Transaction) (TxID, error) {
	if err := ctx.Err(); err != nil {
		return TxID{}, err
	}

	message := tx.Message()
	for _, ix := range tx.Instructions {
		for _, meta := range ix.Accounts {
			if meta.Signer && !tx.signedBy(message, meta.Key) {
				return TxID{}, fmt.Errorf("%w: %s", ErrMissingSignature, meta.Key)
			}
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	undo := l.checkpoint(tx)
	for i, ix := range tx.Instructions {
		err := l.execute(ix)
		if l.metrics != nil {
			outcome := "ok"
			if err != nil {
				outcome = "error"
			}
			l.metrics.RecordInstruction(opcodeLabel(ix), outcome)
		}
		if err != nil {
			l.rollback(undo)
			if l.metrics != nil {
				l.metrics.RecordTransaction("reverted")
			}
			l.log.Debug("transaction reverted",
				slog.Int("instruction", i),
				slog.String("err", err.Error()))
			return TxID{}, fmt.Errorf("instruction %d: %w", i, err)
		}
	}

	slot := l.slot.Inc()
	if l.metrics != nil {
		l.metrics.RecordTransaction("committed")
		l.metrics.SetSlot(slot)
	}
	id := tx.ID()
	l.log.Debug("transaction committed",
		slog.Uint64("slot", slot),
		slog.String("tx", id.String()))
	return id, nil
}

// opcodeLabel names an instruction for the per-opcode counters without
// decoding its payload.
func opcodeLabel(ix Instruction) string {
	switch ix.Program {
	case SystemProgramID:
		return "system"
	case program.ID:
		if len(ix.Data) > 0 {
			return program.Opcode(ix.Data[0]).String()
		}
	}
	return "unknown"
}

func (l *Ledger) execute(ix Instruction) error {
	switch ix.Program {
	case SystemProgramID:
		return l.applySystem(ix)
	case program.ID:
		return l.invokeRegistry(ix)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownProgram, ix.Program)
	}
}

// invokeRegistry materializes account views in declared order and runs the
// registry processor over them. The processor mutates data buffers in place;
// balances are copied out and written back on success only because rollback
// for the whole transaction is handled at the Submit level.
func (l *Ledger) invokeRegistry(ix Instruction) error {
	views := make([]*program.Account, len(ix.Accounts))
	backing := make([]*account, len(ix.Accounts))

	for i, meta := range ix.Accounts {
		acc, ok := l.accounts[meta.Key]
		if !ok {
			// Identity-only references (member to add, close destination)
			// need not pre-exist; they materialize as empty accounts.
			acc = &account{}
			l.accounts[meta.Key] = acc
		}
		backing[i] = acc
		views[i] = &program.Account{
			Key:     meta.Key,
			Signer:  meta.Signer,
			Balance: acc.balance,
			Data:    acc.data,
		}
	}

	if err := l.processor.Process(views, ix.Data); err != nil {
		return err
	}

	for i, view := range views {
		backing[i].balance = view.Balance
	}
	return nil
}

// checkpoint copies every account a transaction declares so a failed batch
// can be restored byte-for-byte.
func (l *Ledger) checkpoint(tx *Transaction) map[interfaces.Identity]*account {
	undo := make(map[interfaces.Identity]*account)
	for _, ix := range tx.Instructions {
		for _, meta := range ix.Accounts {
			if _, seen := undo[meta.Key]; seen {
				continue
			}
			if acc, ok := l.accounts[meta.Key]; ok {
				undo[meta.Key] = &account{
					balance: acc.balance,
					data:    append([]byte(nil), acc.data...),
				}
			} else {
				undo[meta.Key] = nil
			}
		}
	}
	return undo
}

func (l *Ledger) rollback(undo map[interfaces.Identity]*account) {
	for key, saved := range undo {
		if saved == nil {
			delete(l.accounts, key)
		} else {
			l.accounts[key] = saved
		}
	}
}
