package bank

import (
	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/feature"
)

// applyFeatureActivations activates every known feature whose account was
// stored as pending or was activated by another fork. The new feature set
// is published before anything else in the new epoch runs.
func (b *Bank) applyFeatureActivations() {
	set := b.FeatureSet()

	var activated []database.Pubkey
	for _, id := range set.Inactive() {
		account, exists := b.GetAccount(id)
		if !exists {
			continue
		}

		f, err := feature.Decode(account)
		if err != nil {
			b.evHandler("bank: features: slot[%d]: feature[%s]: ERROR: %s", b.slot, id, err)
			continue
		}

		activationSlot := f.ActivatedAt
		if !f.Activated {
			f = feature.Feature{Activated: true, ActivatedAt: b.slot}
			activationSlot = b.slot

			updated, err := feature.UpdateAccount(account, f, b.rentCollector.Rent)
			if err != nil {
				b.evHandler("bank: features: slot[%d]: feature[%s]: ERROR: %s", b.slot, id, err)
				continue
			}

			b.adjustCapitalization(account.Lamports, updated.Lamports)
			b.storeAccounts([]database.KeyedAccount{{Key: id, Account: updated}})
		}

		set = set.Activate(id, activationSlot)
		activated = append(activated, id)
	}

	if len(activated) == 0 {
		return
	}

	b.features.Store(set)

	for _, id := range activated {
		b.evHandler("bank: features: slot[%d]: activated[%s]", b.slot, feature.Names[id])
	}
}
