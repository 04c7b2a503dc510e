package otp

import (
	"errors"

	"github.com/i5heu/ouroboros-otp/internal/keypool"
	"github.com/i5heu/ouroboros-otp/internal/ledger"
	"github.com/i5heu/ouroboros-otp/pkg/keygen"
	"github.com/i5heu/ouroboros-otp/pkg/transcode"
)

// Errors returned by Channel operations. Every one of them is reported
// before a key unit is consumed or a counter changed, except where noted.
var (
	ErrInvalidSeed         = keygen.ErrInvalidSeed
	ErrSeedCount           = keygen.ErrSeedCount
	ErrNotEnoughSpace      = keypool.ErrNotEnoughSpace
	ErrPoolAlreadyExists   = keypool.ErrPoolAlreadyExists
	ErrKeysDepleted        = keypool.ErrKeysDepleted
	ErrUnitCorrupt         = keypool.ErrUnitCorrupt
	ErrLedgerExhausted     = ledger.ErrLedgerExhausted
	ErrLedgerCorrupt       = ledger.ErrLedgerCorrupt
	ErrMessageEmpty        = transcode.ErrMessageEmpty
	ErrMessageTooLarge     = transcode.ErrMessageTooLarge
	ErrCiphertextWrongSize = transcode.ErrCiphertextWrongSize
	ErrInputMissing        = transcode.ErrInputMissing

	ErrArtifactMissing = errors.New("otp: artifact missing")
	// ErrLedgerDiverged means a counter no longer matches the units left in
	// its pool. The channel needs a manual resync.
	ErrLedgerDiverged = errors.New("otp: ledger and key pool diverged")
	ErrNotGenerated   = errors.New("otp: no keys generated in this channel")
	ErrNotStarted     = errors.New("otp: channel not started")
	ErrClosed         = errors.New("otp: channel closed")
)
