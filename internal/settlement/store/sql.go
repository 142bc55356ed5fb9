package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"

	"github.com/radieske/stream-bets-settlement/internal/settlement/ledger"
)

// Dialect seleciona o SQL específico de cada banco.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS accounts (
	address  TEXT PRIMARY KEY,
	owner    TEXT   NOT NULL,
	lamports BIGINT NOT NULL,
	data     BYTEA
);
CREATE INDEX IF NOT EXISTS idx_accounts_owner ON accounts(owner);
`

const schemaSQLite = `
CREATE TABLE IF NOT EXISTS accounts (
	address  TEXT PRIMARY KEY,
	owner    TEXT    NOT NULL,
	lamports INTEGER NOT NULL,
	data     BLOB
);
CREATE INDEX IF NOT EXISTS idx_accounts_owner ON accounts(owner);
`

// SQL implementa Store sobre database/sql (Postgres via lib/pq ou SQLite).
// Em Postgres as leituras usam SELECT ... FOR UPDATE, travando a conta até o
// fim da transação.
type SQL struct {
	db      *sql.DB
	dialect Dialect
}

// NewSQL cria o store; chame Migrate antes do primeiro uso.
func NewSQL(db *sql.DB, dialect Dialect) *SQL {
	return &SQL{db: db, dialect: dialect}
}

// Migrate cria a tabela de contas se ainda não existir.
func (s *SQL) Migrate(ctx context.Context) error {
	schema := schemaPostgres
	if s.dialect == DialectSQLite {
		schema = schemaSQLite
	}
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("store: migrate %s: %w", s.dialect, err)
	}
	return nil
}

func (s *SQL) Begin(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqlTx{tx: tx, dialect: s.dialect}, nil
}

func (s *SQL) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }
func (s *SQL) Close() error                   { return s.db.Close() }

type sqlTx struct {
	tx      *sql.Tx
	dialect Dialect
}

// rebind troca ? por $1, $2... no Postgres.
func (t *sqlTx) rebind(q string) string {
	if t.dialect != DialectPostgres {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (t *sqlTx) Get(ctx context.Context, addr ledger.Pubkey) (Account, error) {
	q := `SELECT owner, lamports, data FROM accounts WHERE address = ?`
	if t.dialect == DialectPostgres {
		q += ` FOR UPDATE`
	}
	var (
		owner    string
		lamports int64
		data     []byte
	)
	err := t.tx.QueryRowContext(ctx, t.rebind(q), addr.String()).Scan(&owner, &lamports, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return Account{}, ErrNotFound
	}
	if err != nil {
		return Account{}, fmt.Errorf("store: get %s: %w", addr, err)
	}
	ownerKey, err := ledger.ParsePubkey(owner)
	if err != nil {
		return Account{}, fmt.Errorf("store: get %s: owner: %w", addr, err)
	}
	// lamports é u64 gravado bit a bit em uma coluna inteira com sinal
	return Account{Owner: ownerKey, Lamports: uint64(lamports), Data: data}, nil
}

func (t *sqlTx) Insert(ctx context.Context, addr ledger.Pubkey, acc Account) error {
	_, err := t.tx.ExecContext(ctx,
		t.rebind(`INSERT INTO accounts (address, owner, lamports, data) VALUES (?, ?, ?, ?)`),
		addr.String(), acc.Owner.String(), int64(acc.Lamports), acc.Data,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrExists
		}
		return fmt.Errorf("store: insert %s: %w", addr, err)
	}
	return nil
}

func (t *sqlTx) Update(ctx context.Context, addr ledger.Pubkey, acc Account) error {
	res, err := t.tx.ExecContext(ctx,
		t.rebind(`UPDATE accounts SET owner = ?, lamports = ?, data = ? WHERE address = ?`),
		acc.Owner.String(), int64(acc.Lamports), acc.Data, addr.String(),
	)
	if err != nil {
		return fmt.Errorf("store: update %s: %w", addr, err)
	}
	return expectOne(res, addr)
}

func (t *sqlTx) Delete(ctx context.Context, addr ledger.Pubkey) error {
	res, err := t.tx.ExecContext(ctx, t.rebind(`DELETE FROM accounts WHERE address = ?`), addr.String())
	if err != nil {
		return fmt.Errorf("store: delete %s: %w", addr, err)
	}
	return expectOne(res, addr)
}

func (t *sqlTx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		if errors.Is(err, sql.ErrTxDone) {
			return ErrTxDone
		}
		return err
	}
	return nil
}

func (t *sqlTx) Rollback() error {
	if err := t.tx.Rollback(); err != nil {
		if errors.Is(err, sql.ErrTxDone) {
			return ErrTxDone
		}
		return err
	}
	return nil
}

func expectOne(res sql.Result, addr ledger.Pubkey) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: rows affected %s: %w", addr, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// isUniqueViolation reconhece chave duplicada no Postgres (23505) e no SQLite.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
