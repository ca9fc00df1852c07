// Package registry provides a client for operating a sharded allow-list
// registry on the ledger. It builds and submits the account creation and
// program instructions needed to manage shards and members, and reads
// registry state back from account data.
package registry

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/tokengate/token-allowlist-backend/interfaces"
	"github.com/tokengate/token-allowlist-backend/keystore"
	"github.com/tokengate/token-allowlist-backend/ledger"
	"github.com/tokengate/token-allowlist-backend/program"
)

// DefaultShardCapacity is the member capacity used for shards created
// automatically when an add spills over a full registry.
const DefaultShardCapacity = program.MaxShardCapacity

// Submitter accepts signed transaction batches for execution.
type Submitter interface {
	Submit(ctx context.Context, tx *ledger.Transaction) (ledger.TxID, error)
}

// Reader provides read access to ledger account state.
type Reader interface {
	GetAccount(key interfaces.Identity) (ledger.AccountState, bool)
	Rent() program.Rent
}

// AllowlistClient manages a sharded allow-list registry on behalf of an
// authority. The registry map account and the authority keypair are derived
// from the keystore, shard accounts get fresh one-off keypairs.
type AllowlistClient struct {
	submitter Submitter
	reader    Reader
	keys      *keystore.Keystore
	authority keystore.Keypair
	registry  interfaces.Identity
	log       *slog.Logger
}

// NewAllowlistClient creates a registry client. The authority and the
// registry map account keypairs are derived deterministically so a restarted
// client reconnects to the same registry.
func NewAllowlistClient(submitter Submitter, reader Reader, keys *keystore.Keystore, log *slog.Logger) (*AllowlistClient, error) {
	authority, err := keys.DeriveKeypair("authority")
	if err != nil {
		return nil, fmt.Errorf("failed to derive authority keypair: %w", err)
	}
	registry, err := keys.DeriveKeypair("registry")
	if err != nil {
		return nil, fmt.Errorf("failed to derive registry keypair: %w", err)
	}

	return &AllowlistClient{
		submitter: submitter,
		reader:    reader,
		keys:      keys,
		authority: authority,
		registry:  registry.Identity,
		log:       log,
	}, nil
}

// Authority returns the identity that signs all mutations.
func (c *AllowlistClient) Authority() interfaces.Identity {
	return c.authority.Identity
}

// Registry returns the identity of the registry map account.
func (c *AllowlistClient) Registry() interfaces.Identity {
	return c.registry
}

// InitRegistry creates and initializes the registry map account with room
// for maxShards shard references. Account creation and initialization run
// in a single atomic batch.
func (c *AllowlistClient) InitRegistry(ctx context.Context, maxShards uint64) (ledger.TxID, error) {
	registryKP, err := c.keys.DeriveKeypair("registry")
	if err != nil {
		return ledger.TxID{}, fmt.Errorf("failed to derive registry keypair: %w", err)
	}

	size := program.MapAccountSize(maxShards)
	funding := c.reader.Rent().MinimumBalance(size)

	tx := ledger.NewTransaction(
		ledger.CreateAccountInstruction(c.authority.Identity, c.registry, uint64(size), funding),
		c.programInstruction(c.registry, interfaces.Identity{}, program.InitInstructionData(maxShards)),
	)
	if err := c.signAll(tx, c.authority, registryKP); err != nil {
		return ledger.TxID{}, err
	}

	txid, err := c.submitter.Submit(ctx, tx)
	if err != nil {
		return ledger.TxID{}, fmt.Errorf("failed to initialize registry: %w", err)
	}

	c.log.Info("Initialized registry",
		slog.String("registry", c.registry.String()),
		slog.Uint64("max_shards", maxShards),
		slog.String("tx", txid.String()))

	return txid, nil
}

// CreateShard creates, initializes and registers a new shard account with
// the given member capacity, all in one atomic batch. Returns the shard
// identity.
func (c *AllowlistClient) CreateShard(ctx context.Context, capacity uint64) (interfaces.Identity, error) {
	shardKP, err := c.keys.DeriveKeypair("shard-" + uuid.NewString())
	if err != nil {
		return interfaces.Identity{}, fmt.Errorf("failed to derive shard keypair: %w", err)
	}
	shard := shardKP.Identity

	size := program.ShardAccountSize(capacity)
	funding := c.reader.Rent().MinimumBalance(size)

	tx := ledger.NewTransaction(
		ledger.CreateAccountInstruction(c.authority.Identity, shard, uint64(size), funding),
		c.programInstruction(shard, interfaces.Identity{}, program.InitInstructionData(capacity)),
		c.programInstruction(c.registry, shard, program.RegisterShardInstructionData()),
	)
	if err := c.signAll(tx, c.authority, shardKP); err != nil {
		return interfaces.Identity{}, err
	}

	txid, err := c.submitter.Submit(ctx, tx)
	if err != nil {
		return interfaces.Identity{}, fmt.Errorf("failed to create shard: %w", err)
	}

	c.log.Info("Created shard",
		slog.String("shard", shard.String()),
		slog.Uint64("capacity", capacity),
		slog.String("tx", txid.String()))

	return shard, nil
}

// AddMember lists a member with the given token allocation. The member is
// placed in the first registered shard with free space. When every shard is
// full a new shard of DefaultShardCapacity is created and registered first.
// Returns program.ErrDuplicateEntry if the member is already listed anywhere
// in the registry.
func (c *AllowlistClient) AddMember(ctx context.Context, member interfaces.Identity, allocation uint64) (ledger.TxID, error) {
	shards, err := c.shardStates()
	if err != nil {
		return ledger.TxID{}, err
	}

	var target interfaces.Identity
	var found bool
	for _, s := range shards {
		if s.state.Contains(member) {
			return ledger.TxID{}, program.ErrDuplicateEntry
		}
		if !found && s.state.Free() > 0 {
			target = s.id
			found = true
		}
	}

	if !found {
		target, err = c.CreateShard(ctx, DefaultShardCapacity)
		if err != nil {
			return ledger.TxID{}, err
		}
	}

	tx := ledger.NewTransaction(
		c.programInstruction(target, member, program.AddMemberInstructionData(allocation)),
	)
	if err := c.signAll(tx, c.authority); err != nil {
		return ledger.TxID{}, err
	}

	txid, err := c.submitter.Submit(ctx, tx)
	if err != nil {
		return ledger.TxID{}, fmt.Errorf("failed to add member: %w", err)
	}

	c.log.Info("Added member",
		slog.String("member", member.String()),
		slog.String("shard", target.String()),
		slog.Uint64("allocation", allocation),
		slog.String("tx", txid.String()))

	return txid, nil
}

// RemoveMember delists a member. Returns program.ErrEntryNotFound if no
// registered shard contains the member.
func (c *AllowlistClient) RemoveMember(ctx context.Context, member interfaces.Identity) (ledger.TxID, error) {
	shards, err := c.shardStates()
	if err != nil {
		return ledger.TxID{}, err
	}

	for _, s := range shards {
		if !s.state.Contains(member) {
			continue
		}

		tx := ledger.NewTransaction(
			c.programInstruction(s.id, member, program.RemoveMemberInstructionData()),
		)
		if err := c.signAll(tx, c.authority); err != nil {
			return ledger.TxID{}, err
		}

		txid, err := c.submitter.Submit(ctx, tx)
		if err != nil {
			return ledger.TxID{}, fmt.Errorf("failed to remove member: %w", err)
		}

		c.log.Info("Removed member",
			slog.String("member", member.String()),
			slog.String("shard", s.id.String()),
			slog.String("tx", txid.String()))

		return txid, nil
	}

	return ledger.TxID{}, program.ErrEntryNotFound
}

// Close tears down a registry account, either a shard or the map itself,
// transferring its balance to the recipient. The account stays unusable
// afterwards.
func (c *AllowlistClient) Close(ctx context.Context, target, recipient interfaces.Identity) (ledger.TxID, error) {
	tx := ledger.NewTransaction(
		c.programInstruction(target, recipient, program.CloseInstructionData()),
	)
	if err := c.signAll(tx, c.authority); err != nil {
		return ledger.TxID{}, err
	}

	txid, err := c.submitter.Submit(ctx, tx)
	if err != nil {
		return ledger.TxID{}, fmt.Errorf("failed to close account: %w", err)
	}

	c.log.Info("Closed account",
		slog.String("target", target.String()),
		slog.String("recipient", recipient.String()),
		slog.String("tx", txid.String()))

	return txid, nil
}

// Shards returns the identities of all registered shards.
func (c *AllowlistClient) Shards() ([]interfaces.Identity, error) {
	m, err := c.loadMap()
	if err != nil {
		return nil, err
	}
	return append([]interfaces.Identity(nil), m.ShardRefs...), nil
}

// IsListed reports whether a member appears in any registered shard.
func (c *AllowlistClient) IsListed(member interfaces.Identity) (bool, error) {
	_, listed, err := c.AllocationOf(member)
	return listed, err
}

// AllocationOf returns the token allocation for a listed member.
func (c *AllowlistClient) AllocationOf(member interfaces.Identity) (uint64, bool, error) {
	shards, err := c.shardStates()
	if err != nil {
		return 0, false, err
	}

	for _, s := range shards {
		if allocation, ok := s.state.AllocationOf(member); ok {
			return allocation, true, nil
		}
	}
	return 0, false, nil
}

// Members returns the members of one shard in insertion order.
func (c *AllowlistClient) Members(shard interfaces.Identity) ([]program.Member, error) {
	s, err := c.loadShard(shard)
	if err != nil {
		return nil, err
	}
	return append([]program.Member(nil), s.Members...), nil
}

type shardState struct {
	id    interfaces.Identity
	state *program.RegistryShard
}

// shardStates loads the map account and every shard it references.
func (c *AllowlistClient) shardStates() ([]shardState, error) {
	m, err := c.loadMap()
	if err != nil {
		return nil, err
	}

	shards := make([]shardState, 0, len(m.ShardRefs))
	for _, ref := range m.ShardRefs {
		s, err := c.loadShard(ref)
		if err != nil {
			return nil, fmt.Errorf("shard %s: %w", ref.String(), err)
		}
		shards = append(shards, shardState{id: ref, state: s})
	}
	return shards, nil
}

func (c *AllowlistClient) loadMap() (*program.RegistryMap, error) {
	acc, ok := c.reader.GetAccount(c.registry)
	if !ok {
		return nil, fmt.Errorf("registry account %s does not exist", c.registry.String())
	}

	m, err := program.UnpackMap(acc.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode registry account: %w", err)
	}
	if !m.Initialized {
		return nil, program.ErrNotInitialized
	}
	return m, nil
}

func (c *AllowlistClient) loadShard(id interfaces.Identity) (*program.RegistryShard, error) {
	acc, ok := c.reader.GetAccount(id)
	if !ok {
		return nil, fmt.Errorf("shard account %s does not exist", id.String())
	}

	s, err := program.UnpackShard(acc.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode shard account: %w", err)
	}
	if !s.Initialized {
		return nil, program.ErrNotInitialized
	}
	return s, nil
}

// programInstruction builds a registry program instruction with the fixed
// account layout the processor expects: authority, writable target, subject.
// Init instructions pass the rent sysvar as the subject.
func (c *AllowlistClient) programInstruction(target, subject interfaces.Identity, data []byte) ledger.Instruction {
	if len(data) > 0 && program.Opcode(data[0]) == program.OpInit {
		subject = program.RentSysvarID
	}
	return ledger.Instruction{
		Program: program.ID,
		Accounts: []ledger.AccountMeta{
			{Key: c.authority.Identity, Signer: true},
			{Key: target, Writable: true},
			{Key: subject},
		},
		Data: data,
	}
}

func (c *AllowlistClient) signAll(tx *ledger.Transaction, signers ...keystore.Keypair) error {
	for _, kp := range signers {
		if err := tx.Sign(kp.PrivateKey); err != nil {
			return fmt.Errorf("failed to sign transaction: %w", err)
		}
	}
	return nil
}
