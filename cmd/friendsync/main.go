// Command friendsync is a headless client for the directory service. It runs a
// discovery session over a JSON contact list and prints the resulting rows.
package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/HammerMeetNail/friendsync/internal/cache"
	"github.com/HammerMeetNail/friendsync/internal/contacts"
	"github.com/HammerMeetNail/friendsync/internal/directory"
	"github.com/HammerMeetNail/friendsync/internal/friendsync"
	"github.com/HammerMeetNail/friendsync/internal/logging"
	"github.com/HammerMeetNail/friendsync/internal/models"
)

const usage = `usage: friendsync [flags] <command> [phone]

commands:
  discover        match contacts and print every row (default)
  add <phone>     send a friend request to a contact
  invite <phone>  send an SMS invite to a contact
  friends         list accepted friends and incoming requests
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "friendsync:", err)
		os.Exit(1)
	}
}

type options struct {
	server   string
	token    string
	contacts string
	cacheDir string
	query    string
	logLevel string
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("friendsync", flag.ContinueOnError)
	fs.Usage = func() { fmt.Fprint(fs.Output(), usage); fs.PrintDefaults() }

	var opts options
	fs.StringVar(&opts.server, "server", envOr("FRIENDSYNC_SERVER", "http://localhost:8080"), "directory service base URL")
	fs.StringVar(&opts.token, "token", os.Getenv("FRIENDSYNC_TOKEN"), "bearer token")
	fs.StringVar(&opts.contacts, "contacts", "contacts.json", "JSON array of device contacts")
	fs.StringVar(&opts.cacheDir, "cache", "", "Pebble cache directory or redis:// URL (in-memory when empty)")
	fs.StringVar(&opts.query, "q", "", "filter rows by name, nickname or phone")
	fs.StringVar(&opts.logLevel, "log-level", "warn", "log level")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if opts.token == "" {
		return errors.New("a bearer token is required (-token or FRIENDSYNC_TOKEN)")
	}

	cmd, rest := "discover", fs.Args()
	if len(rest) > 0 {
		cmd, rest = rest[0], rest[1:]
	}

	logger := logging.New().SetOutput(os.Stderr).SetLevel(logging.ParseLevel(opts.logLevel))

	store, closeStore, err := openStore(opts.cacheDir, viewerNamespace(opts.token))
	if err != nil {
		return err
	}
	defer closeStore()

	engine := friendsync.NewEngine(directory.NewHTTPClient(opts.server, opts.token), store, friendsync.WithLogger(logger))
	defer engine.Close()

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")

	switch cmd {
	case "friends":
		screen, err := engine.LoadFriendsScreen(ctx)
		if err != nil {
			return err
		}
		return enc.Encode(screen)
	case "discover", "add", "invite":
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}

	raw, err := readContacts(opts.contacts)
	if err != nil {
		return err
	}
	if err := discover(ctx, engine, raw); err != nil {
		return err
	}

	if cmd != "discover" {
		if len(rest) != 1 {
			return fmt.Errorf("%s needs exactly one phone number", cmd)
		}
		key, ok := contacts.Normalize(rest[0])
		if !ok {
			return fmt.Errorf("%w: %q is not a phone number", directory.ErrInvalidInput, rest[0])
		}
		if cmd == "add" {
			err = engine.SendFriendRequest(ctx, key)
		} else {
			err = engine.Invite(ctx, key)
		}
		if err != nil {
			return err
		}
	}

	return enc.Encode(engine.View(friendsync.Filter{Query: opts.query}))
}

// discover waits for the background sync to settle. A failed sync is reported
// but the cached rows are still printed.
func discover(ctx context.Context, engine *friendsync.Engine, raw []models.RawContact) error {
	for snap := range engine.StartDiscoverySession(ctx, raw) {
		switch snap.Phase {
		case friendsync.PhaseReconciled:
			return nil
		case friendsync.PhaseSyncFailed:
			if errors.Is(snap.Err, directory.ErrUnauthorized) {
				return snap.Err
			}
			fmt.Fprintln(os.Stderr, "friendsync: showing cached results:", snap.Err)
			return nil
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return friendsync.ErrSessionClosed
}

// redisCacheTTL bounds how long a shared cache keeps rows nobody has refreshed.
const redisCacheTTL = 7 * 24 * time.Hour

// viewerNamespace keys a shared cache by token so two accounts never read each other's rows.
func viewerNamespace(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:8])
}

func openStore(dir, namespace string) (cache.Store, func(), error) {
	if dir == "" {
		return cache.NewMemoryStore(), func() {}, nil
	}
	if strings.HasPrefix(dir, "redis://") || strings.HasPrefix(dir, "rediss://") {
		redisOpts, err := redis.ParseURL(dir)
		if err != nil {
			return nil, nil, fmt.Errorf("parsing cache url: %w", err)
		}
		client := redis.NewClient(redisOpts)
		return cache.NewRedisStore(client, namespace, redisCacheTTL), func() { _ = client.Close() }, nil
	}
	store, err := cache.OpenPebble(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("opening cache: %w", err)
	}
	return store, func() { _ = store.Close() }, nil
}

func readContacts(path string) ([]models.RawContact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading contacts: %w", err)
	}
	var raw []models.RawContact
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing contacts: %w", err)
	}
	return raw, nil
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
