package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/authkeeper/internal/dbx"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/memory"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/users"
	"github.com/dmitrijs2005/authkeeper/internal/timex"
)

// MemoryRepositoryManager ignores the DBTX argument and always returns the
// same process-local stores. Pair it with dbx.DirectTransactor.
type MemoryRepositoryManager struct {
	users  *memory.Users
	tokens *memory.RefreshTokens
}

func NewMemoryRepositoryManager(clock timex.Clock) *MemoryRepositoryManager {
	return &MemoryRepositoryManager{
		users:  memory.NewUsers(clock),
		tokens: memory.NewRefreshTokens(),
	}
}

func (m *MemoryRepositoryManager) Users(dbx.DBTX) users.Repository {
	return m.users
}

func (m *MemoryRepositoryManager) RefreshTokens(dbx.DBTX) refreshtokens.Repository {
	return m.tokens
}

// RunMigrations is a no-op; the in-memory store needs no schema.
func (m *MemoryRepositoryManager) RunMigrations(context.Context, *sql.DB) error {
	return nil
}
