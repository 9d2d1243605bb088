package betting

import (
	"os"

	"github.com/onlytrade/room-server/internal/common"
	"github.com/onlytrade/room-server/internal/models"
)

// Store persists the whole ledger document as one JSON file, tmp+rename.
type Store struct {
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Load() (*models.Ledger, error) {
	ledger := models.NewLedger()
	if err := common.ReadJSON(s.path, ledger); err != nil {
		if os.IsNotExist(err) {
			return ledger, nil
		}
		return ledger, err
	}
	if ledger.Days == nil {
		ledger.Days = make(map[string]*models.DayState)
	}
	if ledger.CreditsBySession == nil {
		ledger.CreditsBySession = make(map[string]*models.CreditRecord)
	}
	return ledger, nil
}

func (s *Store) Save(ledger *models.Ledger) error {
	return common.WriteJSONAtomic(s.path, ledger)
}
