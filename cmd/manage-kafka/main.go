// Command manage-kafka provisions broker users and ACLs for realms by
// writing directly to the security subtree Kafka keeps in ZooKeeper. Each
// invocation is one-shot and idempotent; orchestrators re-run commands
// freely.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/ehealthafrica/gateway-manager/journal"
	"github.com/ehealthafrica/gateway-manager/provision"
	"github.com/ehealthafrica/gateway-manager/settings"
	"github.com/ehealthafrica/gateway-manager/zkacl"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := strings.ToUpper(os.Args[1])
	args := os.Args[2:]

	cfg, err := settings.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log, err := newLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	commands := map[string]func(ctx context.Context, cfg settings.Settings, log *zap.Logger, args []string) error{
		"ADD_SUPERUSER":   runAddSuperuser,
		"ADD_TENANT":      runAddTenant,
		"GRANT":           runGrant,
		"REVOKE":          runRevoke,
		"TENANT_PASSWORD": runTenantPassword,
		"DUMP":            runDump,
	}
	handler, ok := commands[command]
	if !ok {
		log.Error("no such command", zap.String("command", command))
		printUsage()
		os.Exit(1)
	}
	if err := handler(ctx, cfg, log, args); err != nil {
		log.Error("command failed", zap.String("command", command), zap.Error(err))
		os.Exit(1)
	}
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Usage: manage-kafka <COMMAND> [options] [args]

Commands:
  ADD_SUPERUSER <name> <password>   Create an admin broker user with full grants
  ADD_TENANT <realm>                Create a realm's broker user and prefix grants
  GRANT [options]                   Upsert one permission
  REVOKE [options]                  Remove one permission
  TENANT_PASSWORD <realm>           Print the realm's derived broker password
  DUMP [path]                       Print a ZooKeeper subtree (debugging)

Run 'manage-kafka <COMMAND> -h' for command options. Configuration comes
from ZOOKEEPER_HOST, ZOOKEEPER_USER, ZOOKEEPER_PW, KAFKA_SECRET,
ZK_LAG_TIME, JOURNAL_PATH and DEBUG.
`)
}

// session opens the ZooKeeper client and optional journal, returning a
// provisioner plus a close func aggregating shutdown errors.
func session(cfg settings.Settings, log *zap.Logger, wait time.Duration) (*provision.Provisioner, *zkacl.Client, func() error, error) {
	if err := cfg.RequireZookeeper(); err != nil {
		return nil, nil, nil, err
	}
	client, err := zkacl.Dial(zkacl.Config{
		Hosts:    cfg.ZookeeperHosts,
		User:     cfg.ZookeeperUser,
		Password: cfg.ZookeeperPassword,
		Logger:   log,
	})
	if err != nil {
		return nil, nil, nil, err
	}
	var j *journal.Journal
	if cfg.JournalPath != "" {
		j, err = journal.Open(cfg.JournalPath)
		if err != nil {
			client.Close()
			return nil, nil, nil, err
		}
	}
	p := provision.New(client, provision.Config{
		KafkaSecret: cfg.KafkaSecret,
		Wait:        provision.WaitPolicy{Delay: wait},
		Journal:     j,
		Logger:      log,
	})
	closeAll := func() error {
		return multierr.Append(j.Close(), client.Close())
	}
	return p, client, closeAll, nil
}

func runAddSuperuser(ctx context.Context, cfg settings.Settings, log *zap.Logger, args []string) (err error) {
	fs := flag.NewFlagSet("ADD_SUPERUSER", flag.ExitOnError)
	wait := fs.Duration("wait", cfg.SettleDelay, "settling delay after user creation")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return fmt.Errorf("usage: ADD_SUPERUSER <name> <password>")
	}
	p, _, closeAll, err := session(cfg, log, *wait)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, closeAll()) }()
	return p.CreateSuperuser(ctx, fs.Arg(0), fs.Arg(1))
}

func runAddTenant(ctx context.Context, cfg settings.Settings, log *zap.Logger, args []string) (err error) {
	fs := flag.NewFlagSet("ADD_TENANT", flag.ExitOnError)
	wait := fs.Duration("wait", cfg.SettleDelay, "settling delay after user creation")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: ADD_TENANT <realm>")
	}
	if err := cfg.RequireKafkaSecret(); err != nil {
		return err
	}
	p, _, closeAll, err := session(cfg, log, *wait)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, closeAll()) }()
	return p.CreateTenant(ctx, fs.Arg(0))
}

// permissionFlags declares the shared GRANT/REVOKE flag set.
func permissionFlags(name string) (*flag.FlagSet, *zkacl.Permission) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	p := &zkacl.Permission{}
	fs.StringVar(&p.Principal, "user", "", "broker user name (required)")
	fs.StringVar(&p.ResourceID, "resource", "", "resource id (required)")
	fs.StringVar(&p.ResourceType, "type", "topic", "resource type")
	fs.StringVar(&p.Operation, "operation", "Read", "operation")
	fs.StringVar(&p.PermissionType, "permission", "Allow", "permission type")
	fs.BoolVar(&p.Extended, "extended", false, "prefixed (wildcard) resource match")
	return fs, p
}

func runGrant(_ context.Context, cfg settings.Settings, log *zap.Logger, args []string) (err error) {
	fs, perm := permissionFlags("GRANT")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if perm.Principal == "" || perm.ResourceID == "" {
		return fmt.Errorf("GRANT requires -user and -resource")
	}
	p, _, closeAll, err := session(cfg, log, 0)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, closeAll()) }()
	return p.Grant(*perm)
}

func runRevoke(_ context.Context, cfg settings.Settings, log *zap.Logger, args []string) (err error) {
	fs, perm := permissionFlags("REVOKE")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if perm.Principal == "" || perm.ResourceID == "" {
		return fmt.Errorf("REVOKE requires -user and -resource")
	}
	p, _, closeAll, err := session(cfg, log, 0)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, closeAll()) }()
	return p.Revoke(*perm)
}

func runTenantPassword(_ context.Context, cfg settings.Settings, _ *zap.Logger, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: TENANT_PASSWORD <realm>")
	}
	if err := cfg.RequireKafkaSecret(); err != nil {
		return err
	}
	p := provision.New(nil, provision.Config{KafkaSecret: cfg.KafkaSecret})
	password, err := p.TenantPassword(args[0])
	if err != nil {
		return err
	}
	fmt.Println(password)
	return nil
}

func runDump(_ context.Context, cfg settings.Settings, log *zap.Logger, args []string) (err error) {
	path := "/"
	if len(args) > 0 {
		path = args[0]
	}
	_, client, closeAll, err := session(cfg, log, 0)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, closeAll()) }()
	return client.Dump(path, os.Stdout)
}
