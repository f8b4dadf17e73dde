// Package seed parses seed command flags and provisions a dev database with
// a clan, members, wallets, research progress, and a small arsenal.
package seed

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	entrypoint "github.com/louisbranch/brink.zone/internal/platform/cmd"
	"github.com/louisbranch/brink.zone/internal/wmd/catalog"
	"github.com/louisbranch/brink.zone/internal/wmd/domain"
	"github.com/louisbranch/brink.zone/internal/wmd/roster"
	"github.com/louisbranch/brink.zone/internal/wmd/storage"
	wmdsqlite "github.com/louisbranch/brink.zone/internal/wmd/storage/sqlite"
)

// starterTechs are completed for every seeded member so conventional
// missiles and flak batteries are immediately buildable.
var starterTechs = []string{"rocketry", "radar_network"}

// Config holds seed command configuration.
type Config struct {
	DBPath    string `env:"BRINK_SEED_DB_PATH" envDefault:"data/wmd.db"`
	ClanID    string `env:"BRINK_SEED_CLAN_ID" envDefault:"clan-demo"`
	Members   int    `env:"BRINK_SEED_MEMBERS" envDefault:"3"`
	Resources uint   `env:"BRINK_SEED_RESOURCES" envDefault:"5000"`
	RP        uint   `env:"BRINK_SEED_RP" envDefault:"1000"`
	Arsenal   bool   `env:"BRINK_SEED_ARSENAL" envDefault:"true"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The WMD SQLite database path")
	fs.StringVar(&cfg.ClanID, "clan", cfg.ClanID, "Clan id to provision")
	fs.IntVar(&cfg.Members, "members", cfg.Members, "Number of clan members (first is the leader)")
	var resources, rp uint64
	fs.Uint64Var(&resources, "resources", uint64(cfg.Resources), "Starting wallet resources per member")
	fs.Uint64Var(&rp, "rp", uint64(cfg.RP), "Starting research points per member")
	fs.BoolVar(&cfg.Arsenal, "arsenal", cfg.Arsenal, "Provision a sample arsenal for the leader")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	cfg.Resources = uint(resources)
	cfg.RP = uint(rp)
	return cfg, nil
}

// Run opens the store and provisions the configured clan.
func Run(ctx context.Context, cfg Config, out io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	if strings.TrimSpace(cfg.ClanID) == "" {
		return errors.New("clan id is required")
	}
	if cfg.Members < 1 {
		return errors.New("at least one member is required")
	}

	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create storage dir: %w", err)
		}
	}
	store, err := wmdsqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open wmd sqlite store: %w", err)
	}
	defer store.Close()

	return Provision(ctx, store, cfg, time.Now().UTC(), out)
}

// Provision writes the clan roster, wallets, ledgers, and optional sample
// arsenal to the store. Existing records are left untouched, so reruns are
// safe on a half-seeded database.
func Provision(ctx context.Context, store storage.Store, cfg Config, now time.Time, out io.Writer) error {
	defs := catalog.Default()

	for i := 0; i < cfg.Members; i++ {
		playerID := fmt.Sprintf("player-%d", i+1)
		role := roster.RoleMember
		if i == 0 {
			role = roster.RoleLeader
		}
		if err := store.PutMembership(ctx, roster.Membership{
			ClanID:   cfg.ClanID,
			PlayerID: playerID,
			Role:     role,
			JoinedAt: now.Add(time.Duration(i) * time.Second),
		}); err != nil {
			return fmt.Errorf("seed membership %s: %w", playerID, err)
		}

		if err := seedWallet(ctx, store, playerID, cfg.Resources, now); err != nil {
			return err
		}
		if err := seedLedger(ctx, store, playerID, cfg.RP, now); err != nil {
			return err
		}
		fmt.Fprintf(out, "member %s (%s)\n", playerID, role)
	}

	if cfg.Arsenal {
		if err := seedArsenal(ctx, store, "player-1", defs, now); err != nil {
			return err
		}
		fmt.Fprintln(out, "arsenal: 1 flak battery, 1 conventional missile for player-1")
	}

	fmt.Fprintf(out, "seeded clan %q with %d member(s)\n", cfg.ClanID, cfg.Members)
	return nil
}

func seedWallet(ctx context.Context, store storage.Store, playerID string, resources uint, now time.Time) error {
	err := store.PutWallet(ctx, storage.Wallet{
		PlayerID:  playerID,
		Resources: resources,
		UpdatedAt: now,
	}, 0)
	if err != nil && !errors.Is(err, storage.ErrAlreadyExists) {
		return fmt.Errorf("seed wallet %s: %w", playerID, err)
	}
	return nil
}

func seedLedger(ctx context.Context, store storage.Store, playerID string, rp uint, now time.Time) error {
	ledger, err := domain.NewLedger(playerID, func() time.Time { return now })
	if err != nil {
		return fmt.Errorf("build ledger %s: %w", playerID, err)
	}
	for _, techID := range starterTechs {
		ledger.Completed[techID] = struct{}{}
	}
	ledger.RP = rp

	if err := store.CreateLedger(ctx, ledger, nil); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return nil
		}
		return fmt.Errorf("seed ledger %s: %w", playerID, err)
	}
	return nil
}

func seedArsenal(ctx context.Context, store storage.Store, ownerID string, defs *catalog.Catalog, now time.Time) error {
	wallet, err := store.GetWallet(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("load wallet %s: %w", ownerID, err)
	}

	batteryDef, ok := defs.Battery("flak_battery")
	if !ok {
		return errors.New("catalog is missing flak_battery")
	}
	// Fixed asset ids keep reruns idempotent: the second insert collides
	// instead of stacking duplicates.
	battery, err := domain.NewBattery(ownerID, batteryDef, func() time.Time { return now }, func() (string, error) {
		return "seed-battery-" + ownerID, nil
	})
	if err != nil {
		return fmt.Errorf("build battery: %w", err)
	}
	if err := store.CreateBattery(ctx, battery, wallet, wallet.Version, nil); err != nil && !errors.Is(err, storage.ErrAlreadyExists) {
		return fmt.Errorf("seed battery: %w", err)
	}

	wallet, err = store.GetWallet(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("reload wallet %s: %w", ownerID, err)
	}
	warheadDef, ok := defs.Warhead("conventional")
	if !ok {
		return errors.New("catalog is missing conventional warhead")
	}
	missile, err := domain.NewMissile(ownerID, warheadDef, "player-2", domain.Coordinates{X: 12, Y: 34}, func() time.Time { return now }, func() (string, error) {
		return "seed-missile-" + ownerID, nil
	})
	if err != nil {
		return fmt.Errorf("build missile: %w", err)
	}
	if err := store.CreateMissile(ctx, missile, wallet, wallet.Version, nil); err != nil && !errors.Is(err, storage.ErrAlreadyExists) {
		return fmt.Errorf("seed missile: %w", err)
	}
	return nil
}
