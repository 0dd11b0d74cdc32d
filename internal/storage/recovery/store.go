// Package recovery persists the degraded/loss state so a restart resumes unresolved imbalances.
package recovery

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/arbiter/internal/domain"
)

// DefaultPath is used when no state file is configured.
const DefaultPath = "./state/recovery.json"

// ErrCorruptSnapshot is returned when the snapshot file cannot be decoded.
var ErrCorruptSnapshot = errors.New("corrupt recovery snapshot")

// Store keeps the recovery snapshot in a single JSON file.
type Store struct {
	path string
}

// NewStore creates a snapshot store at path, creating its directory.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = DefaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "create recovery state dir")
	}

	return &Store{path: path}, nil
}

// Path returns the snapshot file location.
func (s *Store) Path() string {
	return s.path
}

// Snapshot is the on-disk form of domain.RecoveryState.
type Snapshot struct {
	FiatDegraded         bool   `json:"fiatDegraded"`
	FiatPrice            string `json:"fiatPrice"`
	FiatAmount           string `json:"fiatAmount"`
	FiatOtherLegAmount   string `json:"fiatOtherLegAmount"`
	CryptoDegraded       bool   `json:"cryptoDegraded"`
	CryptoPrice          string `json:"cryptoPrice"`
	CryptoAmount         string `json:"cryptoAmount"`
	CryptoOtherLegAmount string `json:"cryptoOtherLegAmount"`
	HadLoss              bool   `json:"hadLoss"`
}

// NewSnapshot converts recovery state into its stored representation.
func NewSnapshot(state domain.RecoveryState) Snapshot {
	return Snapshot{
		FiatDegraded:         state.Fiat.Active,
		FiatPrice:            state.Fiat.StoredPrice.String(),
		FiatAmount:           state.Fiat.StoredAmount.String(),
		FiatOtherLegAmount:   state.Fiat.OtherLegAmount.String(),
		CryptoDegraded:       state.Crypto.Active,
		CryptoPrice:          state.Crypto.StoredPrice.String(),
		CryptoAmount:         state.Crypto.StoredAmount.String(),
		CryptoOtherLegAmount: state.Crypto.OtherLegAmount.String(),
		HadLoss:              state.HadLoss,
	}
}

// ToState reconstructs recovery state from stored data.
func (s Snapshot) ToState() (domain.RecoveryState, error) {
	fiat, err := toDegraded(s.FiatDegraded, s.FiatPrice, s.FiatAmount, s.FiatOtherLegAmount)
	if err != nil {
		return domain.RecoveryState{}, errors.Wrap(err, "decode fiat degraded state")
	}
	crypto, err := toDegraded(s.CryptoDegraded, s.CryptoPrice, s.CryptoAmount, s.CryptoOtherLegAmount)
	if err != nil {
		return domain.RecoveryState{}, errors.Wrap(err, "decode crypto degraded state")
	}

	return domain.RecoveryState{Fiat: fiat, Crypto: crypto, HadLoss: s.HadLoss}, nil
}

func toDegraded(active bool, price, amount, otherLegAmount string) (domain.DegradedState, error) {
	values := make([]decimal.Decimal, 0, 3)
	for _, raw := range []string{price, amount, otherLegAmount} {
		if raw == "" {
			values = append(values, decimal.Zero)
			continue
		}
		v, err := decimal.NewFromString(raw)
		if err != nil {
			return domain.DegradedState{}, err
		}
		values = append(values, v)
	}

	return domain.DegradedState{
		Active:         active,
		StoredPrice:    values[0],
		StoredAmount:   values[1],
		OtherLegAmount: values[2],
	}, nil
}

// Load reads the snapshot. A missing or empty file yields (nil, nil);
// an undecodable one yields ErrCorruptSnapshot.
func (s *Store) Load() (*domain.RecoveryState, error) {
	if s == nil || s.path == "" {
		return nil, nil
	}

	payload, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}

		return nil, errors.Wrap(err, "read recovery snapshot")
	}

	if len(payload) == 0 {
		return nil, nil
	}

	var snapshot Snapshot
	if err := json.Unmarshal(payload, &snapshot); err != nil {
		return nil, errors.Wrap(ErrCorruptSnapshot, err.Error())
	}

	state, err := snapshot.ToState()
	if err != nil {
		return nil, errors.Wrap(ErrCorruptSnapshot, err.Error())
	}

	return &state, nil
}

// Save writes the snapshot atomically via temp file, syncing before the rename.
func (s *Store) Save(state domain.RecoveryState) error {
	if s == nil || s.path == "" {
		return nil
	}

	payload, err := json.MarshalIndent(NewSnapshot(state), "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode recovery snapshot")
	}

	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return errors.Wrap(err, "open recovery snapshot temp file")
	}
	if _, err := f.Write(payload); err != nil {
		f.Close()
		return errors.Wrap(err, "write recovery snapshot temp file")
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return errors.Wrap(err, "sync recovery snapshot temp file")
	}
	if err := f.Close(); err != nil {
		return errors.Wrap(err, "close recovery snapshot temp file")
	}

	if err := os.Rename(tmp, s.path); err != nil {
		return errors.Wrap(err, "persist recovery snapshot")
	}

	return nil
}

// Delete removes the snapshot; a missing file is not an error.
func (s *Store) Delete() error {
	if s == nil || s.path == "" {
		return nil
	}
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return errors.Wrap(err, "remove recovery snapshot")
	}
	return nil
}
