// Package daemon is the embedded wallet library: wallets live in a sqlite
// file, each holding a seed sealed with a key derived from its password.
package daemon

import (
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/Oudwins/walletgate/internals/walletlib"
)

type Config struct {
	Path string
	DB   *sql.DB
	// ScryptN is the key derivation cost. Tests use a small value.
	ScryptN int
	Logger  *slog.Logger
}

type Daemon struct {
	db      *sql.DB
	ownsDB  bool
	scryptN int
	logger  *slog.Logger

	mu     sync.Mutex
	loaded map[string]walletlib.Wallet
}

var _ walletlib.Library = (*Daemon)(nil)

func Open(ctx context.Context, cfg Config) (*Daemon, error) {
	if cfg.DB == nil && cfg.Path == "" {
		return nil, errors.New("daemon requires a db or path")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.ScryptN <= 0 {
		cfg.ScryptN = DefaultScryptN
	}

	db := cfg.DB
	owns := false
	if db == nil {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, err
		}
		opened, err := sql.Open("sqlite", cfg.Path)
		if err != nil {
			return nil, err
		}
		if err := opened.PingContext(ctx); err != nil {
			opened.Close()
			return nil, err
		}
		for _, pragma := range []string{"PRAGMA journal_mode = WAL;", "PRAGMA synchronous = NORMAL;"} {
			if _, err := opened.ExecContext(ctx, pragma); err != nil {
				opened.Close()
				return nil, err
			}
		}
		db = opened
		owns = true
	}

	if err := migrate(db, logger); err != nil {
		if owns {
			db.Close()
		}
		return nil, err
	}

	return &Daemon{
		db:      db,
		ownsDB:  owns,
		scryptN: cfg.ScryptN,
		logger:  logger,
		loaded:  make(map[string]walletlib.Wallet),
	}, nil
}

func (d *Daemon) Close() error {
	if !d.ownsDB {
		return nil
	}
	return d.db.Close()
}

// Invoke runs op. Failures the caller can act on are *walletlib.Error
// values; anything else is an internal failure.
func (d *Daemon) Invoke(ctx context.Context, op string, args ...any) (any, error) {
	d.logger.Debug("Invoke", slog.String("op", op), slog.Int("args", len(args)))
	switch op {
	case walletlib.OpListWallets:
		return d.listWallets(ctx)
	case walletlib.OpMakeSeed:
		return newSeed()
	case walletlib.OpCreate:
		var name, password, seed string
		if err := bind(op, args, &name, &password, &seed); err != nil {
			return nil, err
		}
		return nil, d.create(ctx, name, password, seed)
	case walletlib.OpLoadWallet:
		var name, password string
		if err := bind(op, args, &name, &password); err != nil {
			return nil, err
		}
		return d.loadWallet(ctx, name, password)
	case walletlib.OpCloseWallet:
		var name string
		if err := bind(op, args, &name); err != nil {
			return nil, err
		}
		d.mu.Lock()
		delete(d.loaded, name)
		d.mu.Unlock()
		return nil, nil
	case walletlib.OpGetSeed:
		var name, password string
		if err := bind(op, args, &name, &password); err != nil {
			return nil, err
		}
		return d.getSeed(ctx, name, password)
	case walletlib.OpDeleteWallet:
		var name string
		if err := bind(op, args, &name); err != nil {
			return nil, err
		}
		return nil, d.deleteWallet(ctx, name)
	default:
		return nil, fmt.Errorf("%w: %s", walletlib.ErrUnknownOperation, op)
	}
}

func bind(op string, args []any, dst ...*string) error {
	if len(args) != len(dst) {
		return walletlib.Raise(walletlib.SigInvalidArgument, "%s takes %d arguments, got %d", op, len(dst), len(args))
	}
	for i, arg := range args {
		s, ok := arg.(string)
		if !ok {
			return walletlib.Raise(walletlib.SigInvalidArgument, "%s argument %d is %T, want string", op, i, arg)
		}
		*dst[i] = s
	}
	return nil
}

func validName(name string) bool {
	return name != "" && !strings.Contains(name, "/")
}

func (d *Daemon) listWallets(ctx context.Context) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT name FROM wallets ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list wallets: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (d *Daemon) create(ctx context.Context, name, password, seed string) error {
	if !validName(name) {
		return walletlib.Raise(walletlib.SigInvalidArgument, "invalid wallet name %q", name)
	}
	seed = normalizeSeed(seed)
	if !validSeed(seed) {
		return walletlib.Raise(walletlib.SigInvalidSeed, "seed failed the checksum")
	}
	box, err := seal(seed, password, d.scryptN)
	if err != nil {
		return fmt.Errorf("seal seed: %w", err)
	}

	res, err := d.db.ExecContext(ctx, `
		INSERT INTO wallets (id, name, salt, nonce, sealed_seed, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO NOTHING
	`, uuid.NewString(), name, box.salt, box.nonce[:], box.box, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("insert wallet: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return walletlib.Raise(walletlib.SigWalletExists, "wallet %q already exists", name)
	}
	d.logger.Info("Wallet created", slog.String("wallet", name))
	return nil
}

type walletRow struct {
	wallet walletlib.Wallet
	sealed sealed
}

func (d *Daemon) find(ctx context.Context, name string) (walletRow, error) {
	var (
		row   walletRow
		nonce []byte
	)
	err := d.db.QueryRowContext(ctx, `
		SELECT id, name, salt, nonce, sealed_seed, created_at FROM wallets WHERE name = ?
	`, name).Scan(&row.wallet.ID, &row.wallet.Name, &row.sealed.salt, &nonce, &row.sealed.box, &row.wallet.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return walletRow{}, walletlib.Raise(walletlib.SigWalletNotFound, "no wallet named %q", name)
	}
	if err != nil {
		return walletRow{}, fmt.Errorf("load wallet %q: %w", name, err)
	}
	if len(nonce) != len(row.sealed.nonce) {
		return walletRow{}, fmt.Errorf("wallet %q has a corrupt nonce", name)
	}
	copy(row.sealed.nonce[:], nonce)
	return row, nil
}

func (d *Daemon) loadWallet(ctx context.Context, name, password string) (walletlib.Wallet, error) {
	row, err := d.find(ctx, name)
	if err != nil {
		return walletlib.Wallet{}, err
	}
	_, ok, err := row.sealed.open(password, d.scryptN)
	if err != nil {
		return walletlib.Wallet{}, err
	}
	if !ok {
		return walletlib.Wallet{}, walletlib.Raise(walletlib.SigInvalidPassword, "wallet %q", name)
	}

	d.mu.Lock()
	d.loaded[name] = row.wallet
	d.mu.Unlock()
	d.logger.Info("Wallet loaded", slog.String("wallet", name))
	return row.wallet, nil
}

// getSeed with an empty password returns the sealed seed encoded as
// base64 rather than failing.
func (d *Daemon) getSeed(ctx context.Context, name, password string) (string, error) {
	row, err := d.find(ctx, name)
	if err != nil {
		return "", err
	}
	if password == "" {
		return base64.StdEncoding.EncodeToString(row.sealed.box), nil
	}
	seed, ok, err := row.sealed.open(password, d.scryptN)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", walletlib.Raise(walletlib.SigInvalidPassword, "wallet %q", name)
	}
	return seed, nil
}

func (d *Daemon) deleteWallet(ctx context.Context, name string) error {
	res, err := d.db.ExecContext(ctx, `DELETE FROM wallets WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("delete wallet: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return walletlib.Raise(walletlib.SigWalletNotFound, "no wallet named %q", name)
	}
	d.mu.Lock()
	delete(d.loaded, name)
	d.mu.Unlock()
	d.logger.Info("Wallet deleted", slog.String("wallet", name))
	return nil
}

// Loaded lists the wallets opened since startup and not closed or deleted.
func (d *Daemon) Loaded() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	names := make([]string, 0, len(d.loaded))
	for name := range d.loaded {
		names = append(names, name)
	}
	return names
}
