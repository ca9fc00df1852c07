package registry

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/tokengate/token-allowlist-backend/interfaces"
	"github.com/tokengate/token-allowlist-backend/ledger"
	"github.com/tokengate/token-allowlist-backend/program"
)

// MockSubmitter mocks the Submitter interface
type MockSubmitter struct {
	mock.Mock
}

// Submit mocks the Submit method
func (m *MockSubmitter) Submit(ctx context.Context, tx *ledger.Transaction) (ledger.TxID, error) {
	args := m.Called(ctx, tx)
	return args.Get(0).(ledger.TxID), args.Error(1)
}

// MockReader mocks the Reader interface
type MockReader struct {
	mock.Mock
}

// GetAccount mocks the GetAccount method
func (m *MockReader) GetAccount(key interfaces.Identity) (ledger.AccountState, bool) {
	args := m.Called(key)
	return args.Get(0).(ledger.AccountState), args.Bool(1)
}

// Rent mocks the Rent method
func (m *MockReader) Rent() program.Rent {
	args := m.Called()
	return args.Get(0).(program.Rent)
}
