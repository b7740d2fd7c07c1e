package database

// Well-known program ids. The system program owns every account that has not
// been assigned to another program, so its id is the zero key.
var (
	SystemProgramID        = Pubkey{}
	NativeLoaderID         = NewPubkeyFromSeed("NativeLoader")
	ComputeBudgetProgramID = NewPubkeyFromSeed("ComputeBudget")
	Secp256k1ProgramID     = NewPubkeyFromSeed("Secp256k1SigVerify")
	VoteProgramID          = NewPubkeyFromSeed("Vote")
	StakeProgramID         = NewPubkeyFromSeed("Stake")
	FeatureProgramID       = NewPubkeyFromSeed("Feature")
	IncineratorID          = NewPubkeyFromSeed("Incinerator")
)

// Well-known sysvar ids.
var (
	SysvarOwnerID             = NewPubkeyFromSeed("Sysvar")
	SysvarClockID             = NewPubkeyFromSeed("SysvarClock")
	SysvarRentID              = NewPubkeyFromSeed("SysvarRent")
	SysvarEpochScheduleID     = NewPubkeyFromSeed("SysvarEpochSchedule")
	SysvarFeesID              = NewPubkeyFromSeed("SysvarFees")
	SysvarRecentBlockhashesID = NewPubkeyFromSeed("SysvarRecentBlockhashes")
	SysvarSlotHashesID        = NewPubkeyFromSeed("SysvarSlotHashes")
	SysvarSlotHistoryID       = NewPubkeyFromSeed("SysvarSlotHistory")
	SysvarStakeHistoryID      = NewPubkeyFromSeed("SysvarStakeHistory")
)

// BuiltinProgramIDs lists the programs that are loaded into every bank.
var BuiltinProgramIDs = []Pubkey{
	SystemProgramID,
	ComputeBudgetProgramID,
	Secp256k1ProgramID,
	VoteProgramID,
	StakeProgramID,
}

var reserved = func() map[Pubkey]struct{} {
	m := make(map[Pubkey]struct{})
	for _, id := range []Pubkey{
		NativeLoaderID, ComputeBudgetProgramID, Secp256k1ProgramID,
		VoteProgramID, StakeProgramID, FeatureProgramID, SysvarOwnerID,
		SysvarClockID, SysvarRentID, SysvarEpochScheduleID, SysvarFeesID,
		SysvarRecentBlockhashesID, SysvarSlotHashesID, SysvarSlotHistoryID,
		SysvarStakeHistoryID,
	} {
		m[id] = struct{}{}
	}
	return m
}()

// IsReserved reports whether the key belongs to a builtin program or sysvar.
// Reserved keys are never write locked by a transaction. The system program
// is left out of the set and is demoted when it is invoked as a program.
func IsReserved(key Pubkey) bool {
	_, exists := reserved[key]
	return exists
}
