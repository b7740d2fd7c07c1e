package bank

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/ardanlabs/ledger/foundation/blockchain/blockhash"
	"github.com/ardanlabs/ledger/foundation/blockchain/cost"
	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/fee"
	"github.com/ardanlabs/ledger/foundation/blockchain/program"
	"github.com/ardanlabs/ledger/foundation/blockchain/statuscache"
	"github.com/ardanlabs/ledger/foundation/blockchain/workpool"
	"github.com/holiman/uint256"
)

// Batch is a set of transactions whose accounts are locked in the database.
// The locks are held until Unlock is called.
type Batch struct {
	bank        *Bank
	txs         []database.Transaction
	lockResults []error
	unlocked    bool
}

// PrepareBatch locks the accounts of the transactions. A transaction that
// conflicts with a lock held by another batch, or by an earlier
// transaction of the same batch, is marked with ErrAccountInUse.
func (b *Bank) PrepareBatch(txs []database.Transaction) *Batch {
	return &Batch{
		bank:        b,
		txs:         txs,
		lockResults: b.db.LockAccounts(txs),
	}
}

// Transactions returns the transactions of the batch.
func (bt *Batch) Transactions() []database.Transaction {
	return bt.txs
}

// LockResults returns the outcome of taking the locks of each transaction.
func (bt *Batch) LockResults() []error {
	return bt.lockResults
}

// Unlock releases the locks held by the batch. It is safe to call more
// than once.
func (bt *Batch) Unlock() {
	if bt.unlocked {
		return
	}
	bt.unlocked = true

	bt.bank.db.UnlockAccounts(bt.txs, bt.lockResults)
}

// =============================================================================

// TransactionResult is the outcome of one transaction of a batch. A
// transaction that was charged a fee is committed even when Err holds the
// execution error.
type TransactionResult struct {
	Signature     database.Signature
	Err           error
	Committed     bool
	Fee           uint64
	UnitsConsumed uint64
	Logs          []string
}

// TransactionLog is the record kept for each committed transaction.
type TransactionLog struct {
	Signature database.Signature `json:"signature"`
	Err       string             `json:"error,omitempty"`
	Logs      []string           `json:"logs"`
}

// nonceInfo identifies the nonce account a transaction relies on when its
// blockhash is no longer valid.
type nonceInfo struct {
	index int
	state program.NonceState
}

type checkedTransaction struct {
	err                  error
	nonce                *nonceInfo
	lamportsPerSignature uint64
	budget               fee.ComputeBudget
	cost                 *cost.Transaction
}

type loadedTransaction struct {
	accounts       []database.KeyedAccount
	originals      []uint64
	rents          []uint64
	reclaimed      []uint64
	programIndices [][]int
	fee            uint64
	feePayer       database.Account
}

type executedTransaction struct {
	loaded   *loadedTransaction
	err      error
	info     program.ExecutionInfo
	accounts []database.KeyedAccount
	logs     []string
}

// =============================================================================

// ProcessTransactions is used by the leader of the slot. The transactions
// are locked, checked against the cost limits of the block, executed and
// committed.
func (b *Bank) ProcessTransactions(txs []database.Transaction) []TransactionResult {
	batch := b.PrepareBatch(txs)
	defer batch.Unlock()

	return b.loadExecuteAndCommit(batch, blockhash.MaxProcessingAge, true)
}

// LoadExecuteAndCommit is used to replay a batch produced by another node.
// Transactions whose blockhash is older than maxAge are rejected.
func (b *Bank) LoadExecuteAndCommit(batch *Batch, maxAge uint64) []TransactionResult {
	return b.loadExecuteAndCommit(batch, maxAge, false)
}

// Transfer is a convenience for moving lamports with a system transfer
// signed by the key. The transaction references the newest blockhash.
func (b *Bank) Transfer(lamports uint64, from *ecdsa.PrivateKey, to database.Pubkey) (database.Signature, error) {
	payer := database.PublicKeyToPubkey(from.PublicKey)

	msg := database.NewMessage(payer, b.LastBlockhash(), program.Transfer(payer, to, lamports))
	tx, err := database.NewTransaction(msg, from)
	if err != nil {
		return database.Signature{}, err
	}

	results := b.ProcessTransactions([]database.Transaction{tx})
	if err := results[0].Err; err != nil {
		return tx.Signature(), err
	}

	return tx.Signature(), nil
}

func (b *Bank) loadExecuteAndCommit(batch *Batch, maxAge uint64, trackCost bool) []TransactionResult {
	return b.Commit(b.loadAndExecute(batch, maxAge, trackCost))
}

// Executed holds a batch that was loaded and executed but not yet committed.
type Executed struct {
	txs      []database.Transaction
	checked  []checkedTransaction
	executed []*executedTransaction
}

// LoadAndExecute checks, loads and executes the transactions of the batch
// without writing anything to the bank.
func (b *Bank) LoadAndExecute(batch *Batch, maxAge uint64) *Executed {
	return b.loadAndExecute(batch, maxAge, false)
}

func (b *Bank) loadAndExecute(batch *Batch, maxAge uint64, trackCost bool) *Executed {
	txs := batch.Transactions()

	checked := b.checkTransactions(txs, batch.LockResults(), maxAge, trackCost)

	executed, _ := workpool.Map(b.pool, txs, func(i int, tx database.Transaction) (*executedTransaction, error) {
		if checked[i].err != nil {
			return nil, nil
		}

		loaded, err := b.loadTransaction(tx, checked[i])
		if err != nil {
			checked[i].err = err
			return nil, nil
		}

		return b.executeTransaction(tx, loaded, checked[i]), nil
	})

	return &Executed{
		txs:      txs,
		checked:  checked,
		executed: executed,
	}
}

// Commit stores the outcome of an executed batch in the bank. Transactions
// that were not committed give back the block cost they reserved.
func (b *Bank) Commit(ex *Executed) []TransactionResult {
	results := b.commitTransactions(ex.txs, ex.checked, ex.executed)

	for i, r := range results {
		if !r.Committed && ex.checked[i].cost != nil {
			b.costTracker.Remove(*ex.checked[i].cost)
		}
	}

	return results
}

// =============================================================================

// checkTransactions rejects the transactions whose locks were not taken,
// whose blockhash is not valid or that were already processed on this fork.
func (b *Bank) checkTransactions(txs []database.Transaction, lockResults []error, maxAge uint64, trackCost bool) []checkedTransaction {
	checked := make([]checkedTransaction, len(txs))
	ancestors := b.Ancestors()

	for i, tx := range txs {
		if lockResults[i] != nil {
			checked[i].err = lockResults[i]
			continue
		}

		if err := tx.Sanitize(); err != nil {
			checked[i].err = err
			continue
		}

		msg := tx.Message

		if lps, exists := b.blockhashQueue.LamportsPerSignature(msg.RecentBlockhash); exists && b.blockhashQueue.IsHashValidForAge(msg.RecentBlockhash, maxAge) {
			checked[i].lamportsPerSignature = lps
		} else {
			nonce, err := b.checkNonce(msg)
			if err != nil {
				checked[i].err = err
				continue
			}
			checked[i].nonce = nonce
			checked[i].lamportsPerSignature = nonce.state.LamportsPerSignature
		}

		if _, exists := b.statusCache.GetStatus(msg.Hash(), msg.RecentBlockhash, ancestors); exists {
			checked[i].err = database.ErrAlreadyProcessed
			continue
		}
		if _, exists := b.statusCache.GetStatus(statuscache.SignatureKey(tx.Signature()), msg.RecentBlockhash, ancestors); exists {
			checked[i].err = database.ErrAlreadyProcessed
			continue
		}

		budget, err := fee.ProcessComputeBudget(msg)
		if err != nil {
			checked[i].err = err
			continue
		}
		checked[i].budget = budget

		if trackCost {
			tc := cost.Calculate(msg, budget)
			if err := b.costTracker.TryAdd(tc); err != nil {
				checked[i].err = err
				continue
			}
			checked[i].cost = &tc
		}
	}

	return checked
}

// checkNonce validates a transaction that references a durable nonce
// instead of a recent blockhash.
func (b *Bank) checkNonce(msg database.Message) (*nonceInfo, error) {
	idx, ok := program.NonceAccountIndex(msg)
	if !ok {
		return nil, database.ErrBlockhashNotFound
	}

	account, exists := b.GetAccount(msg.AccountKeys[idx])
	if !exists {
		return nil, database.ErrBlockhashNotFound
	}

	ns, err := program.DecodeNonce(account)
	if err != nil || ns.DurableNonce != msg.RecentBlockhash {
		return nil, database.ErrBlockhashNotFound
	}

	signed := false
	for i, key := range msg.AccountKeys {
		if key == ns.Authority && msg.IsSigner(i) {
			signed = true
			break
		}
	}
	if !signed {
		return nil, database.ErrBlockhashNotFound
	}

	// The nonce can't be advanced to the value it already holds.
	if program.DurableNonceFromBlockhash(b.LastBlockhash()) == ns.DurableNonce {
		return nil, database.ErrBlockhashNotFound
	}

	return &nonceInfo{index: idx, state: ns}, nil
}

// =============================================================================

// loadTransaction reads the accounts of the transaction, collects the rent
// owed by its writable accounts and charges the fee to the fee payer.
func (b *Bank) loadTransaction(tx database.Transaction, ct checkedTransaction) (*loadedTransaction, error) {
	msg := tx.Message
	ancestors := b.Ancestors()

	lt := loadedTransaction{
		accounts:  make([]database.KeyedAccount, len(msg.AccountKeys)),
		originals: make([]uint64, len(msg.AccountKeys)),
		rents:     make([]uint64, len(msg.AccountKeys)),
		reclaimed: make([]uint64, len(msg.AccountKeys)),
	}

	for i, key := range msg.AccountKeys {
		account, exists := b.db.Load(ancestors, key)
		lt.originals[i] = account.Lamports

		if exists && msg.IsWritable(i) && !msg.IsProgramID(i) {
			collected := b.rentCollector.CollectFromExistingAccount(key, &account)
			lt.rents[i] = collected.Rent
			lt.reclaimed[i] = collected.DataLenReclaimed
		}

		lt.accounts[i] = database.KeyedAccount{Key: key, Account: account}
	}

	payer := &lt.accounts[0].Account
	if lt.originals[0] == 0 || payer.Lamports == 0 {
		return nil, database.ErrAccountNotFound
	}

	if payer.Owner != database.SystemProgramID {
		return nil, database.ErrInvalidAccountForFee
	}

	lt.fee = fee.Calculate(msg, ct.lamportsPerSignature, b.feeStructure, ct.budget)
	if payer.Lamports < lt.fee {
		return nil, database.ErrInsufficientFundsForFee
	}
	payer.Lamports -= lt.fee
	lt.feePayer = payer.Clone()

	lt.programIndices = make([][]int, len(msg.Instructions))
	for i, ix := range msg.Instructions {
		idx := int(ix.ProgramIDIndex)

		account := lt.accounts[idx].Account
		if account.Lamports == 0 {
			return nil, database.ErrProgramAccountNotFound
		}
		if !account.Executable {
			return nil, database.ErrInvalidProgramForExecution
		}

		lt.programIndices[i] = []int{idx}
	}

	return &lt, nil
}

// =============================================================================

// executeTransaction runs the message against copies of the loaded
// accounts. The loaded accounts are not modified.
func (b *Bank) executeTransaction(tx database.Transaction, lt *loadedTransaction, ct checkedTransaction) *executedTransaction {
	accounts := make([]database.KeyedAccount, len(lt.accounts))
	for i, ka := range lt.accounts {
		accounts[i] = database.KeyedAccount{Key: ka.Key, Account: ka.Account.Clone()}
	}

	txCtx := program.NewTransactionContext(accounts, ct.budget.UnitLimit)

	env := program.Env{
		Clock:                b.Clock(),
		Rent:                 b.rentCollector.Rent,
		DurableNonce:         program.DurableNonceFromBlockhash(b.LastBlockhash()),
		LamportsPerSignature: b.feeRateGovernor.LamportsPerSignature,
		Features:             b.FeatureSet(),
		Executors:            b.executors,
	}

	info, err := b.processor.ProcessMessage(tx.Message, lt.programIndices, txCtx, env)
	if err == nil {
		err = checkBalanced(lt.accounts, txCtx.Accounts())
	}

	et := executedTransaction{
		loaded:   lt,
		err:      err,
		info:     info,
		accounts: txCtx.Accounts(),
		logs:     txCtx.Logs(),
	}

	return &et
}

// checkBalanced verifies no lamports were created or destroyed by the
// message.
func checkBalanced(pre []database.KeyedAccount, post []database.KeyedAccount) error {
	before := new(uint256.Int)
	for _, ka := range pre {
		before.AddUint64(before, ka.Account.Lamports)
	}

	after := new(uint256.Int)
	for _, ka := range post {
		after.AddUint64(after, ka.Account.Lamports)
	}

	if !before.Eq(after) {
		return database.ErrUnbalancedTransaction
	}

	return nil
}

// =============================================================================

// commitTransactions stores the outcome of every executed transaction. A
// successful transaction stores all of its writable accounts. A failed one
// only stores the fee payer charged with the fee and the advanced nonce.
func (b *Bank) commitTransactions(txs []database.Transaction, checked []checkedTransaction, executed []*executedTransaction) []TransactionResult {
	b.freezeMu.Lock()
	defer b.freezeMu.Unlock()

	b.mustNotBeFrozen("commit transactions")

	results := make([]TransactionResult, len(txs))

	var (
		toStore  []database.KeyedAccount
		rewards  []RewardInfo
		txLogs   []TransactionLog
		oldTotal uint64
		newTotal uint64
	)

	for i, tx := range txs {
		results[i].Signature = tx.Signature()

		et := executed[i]
		if et == nil {
			results[i].Err = checked[i].err
			continue
		}

		msg := tx.Message
		lt := et.loaded

		var stored []int
		switch et.err {
		case nil:
			for j := range msg.AccountKeys {
				if msg.IsWritable(j) {
					stored = append(stored, j)
				}
			}

		default:
			accounts := make([]database.KeyedAccount, len(lt.accounts))
			copy(accounts, lt.accounts)
			accounts[0].Account = lt.feePayer
			stored = append(stored, 0)

			if nonce := checked[i].nonce; nonce != nil {
				advanced, err := b.advanceNonce(accounts[nonce.index].Account, nonce.state)
				if err != nil {
					b.evHandler("bank: slot[%d]: tx[%s]: advance nonce: ERROR: %s", b.slot, tx, err)
				} else {
					accounts[nonce.index].Account = advanced
					if nonce.index != 0 {
						stored = append(stored, nonce.index)
					}
				}
			}

			et.accounts = accounts
		}

		var rentCollected uint64
		var dataDelta int64
		for _, j := range stored {
			ka := et.accounts[j]
			toStore = append(toStore, ka)

			oldTotal += lt.originals[j]
			newTotal += ka.Account.Lamports

			rentCollected += lt.rents[j]
			dataDelta -= int64(lt.reclaimed[j])

			if lt.rents[j] > 0 {
				rewards = append(rewards, RewardInfo{
					Pubkey:      ka.Key,
					Kind:        RewardRent,
					Lamports:    -int64(lt.rents[j]),
					PostBalance: ka.Account.Lamports,
				})
			}
		}

		if et.err == nil {
			dataDelta += et.info.AccountsDataDelta
		}

		b.collectorFees.Add(lt.fee)
		b.collectedRent.Add(rentCollected)
		b.accountsDataLen.Add(dataDelta)
		b.signatureCount.Add(fee.SignatureCount(msg))
		b.transactionCount.Add(1)

		b.statusCache.Insert(msg.RecentBlockhash, msg.Hash(), b.slot, et.err)
		b.statusCache.Insert(msg.RecentBlockhash, statuscache.SignatureKey(tx.Signature()), b.slot, et.err)

		log := TransactionLog{
			Signature: tx.Signature(),
			Logs:      et.logs,
		}
		if et.err != nil {
			log.Err = et.err.Error()
		}
		txLogs = append(txLogs, log)

		results[i] = TransactionResult{
			Signature:     tx.Signature(),
			Err:           et.err,
			Committed:     true,
			Fee:           lt.fee,
			UnitsConsumed: et.info.UnitsConsumed,
			Logs:          et.logs,
		}
	}

	if len(toStore) == 0 {
		return results
	}

	b.adjustCapitalization(oldTotal, newTotal)
	b.storeAccounts(toStore)
	b.isDelta.Store(true)

	b.mu.Lock()
	{
		b.rewards = append(b.rewards, rewards...)
		b.txLogs = append(b.txLogs, txLogs...)
	}
	b.mu.Unlock()

	b.evHandler("bank: slot[%d]: committed[%d]: accounts[%d]", b.slot, len(txLogs), len(toStore))

	return results
}

// advanceNonce returns the nonce account holding the next durable nonce
// for a transaction that failed to execute.
func (b *Bank) advanceNonce(account database.Account, ns program.NonceState) (database.Account, error) {
	ns.DurableNonce = program.DurableNonceFromBlockhash(b.LastBlockhash())
	ns.LamportsPerSignature = b.feeRateGovernor.LamportsPerSignature

	data, err := ns.Encode()
	if err != nil {
		return database.Account{}, fmt.Errorf("encode nonce: %w", err)
	}

	account.Data = data

	return account, nil
}

