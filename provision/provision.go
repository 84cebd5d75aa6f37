// Package provision composes the ZooKeeper credential and ACL operations
// into the tenant and superuser onboarding flows.
package provision

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ehealthafrica/gateway-manager/journal"
	"github.com/ehealthafrica/gateway-manager/scram"
	"github.com/ehealthafrica/gateway-manager/zkacl"
)

// WaitPolicy is the settling wait between creating a user and granting
// permissions that depend on it. The broker propagates credential changes
// asynchronously; this wait is best effort, not a synchronization
// guarantee.
type WaitPolicy struct {
	// Delay defaults to DefaultSettleDelay when the policy is zero.
	Delay time.Duration

	// Disabled skips the wait entirely (tests).
	Disabled bool
}

// DefaultSettleDelay matches the interval the deployment has always used.
const DefaultSettleDelay = 3 * time.Second

// Wait blocks for the configured delay or until the context is done.
func (w WaitPolicy) Wait(ctx context.Context) error {
	if w.Disabled {
		return nil
	}
	delay := w.Delay
	if delay == 0 {
		delay = DefaultSettleDelay
	}
	select {
	case <-time.After(delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Config assembles a Provisioner.
type Config struct {
	// KafkaSecret is the shared administrative secret tenant passwords
	// are derived from. Required by CreateTenant and TenantPassword.
	KafkaSecret string

	Wait    WaitPolicy
	Journal *journal.Journal // nil disables journaling
	Logger  *zap.Logger
}

// Provisioner runs onboarding flows against one ZooKeeper session.
type Provisioner struct {
	zk      *zkacl.Client
	secret  string
	wait    WaitPolicy
	journal *journal.Journal
	log     *zap.Logger
}

// New wires a Provisioner around an existing client.
func New(client *zkacl.Client, cfg Config) *Provisioner {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Provisioner{
		zk:      client,
		secret:  cfg.KafkaSecret,
		wait:    cfg.Wait,
		journal: cfg.Journal,
		log:     log,
	}
}

// TenantPassword returns the deterministic broker password for a realm.
func (p *Provisioner) TenantPassword(realm string) (string, error) {
	if p.secret == "" {
		return "", fmt.Errorf("kafka shared secret not configured")
	}
	return scram.TenantPassword(realm, p.secret), nil
}

// CreateSuperuser provisions an administrative broker user with All
// permission on every topic, every group, and the cluster itself.
func (p *Provisioner) CreateSuperuser(ctx context.Context, name, password string) error {
	p.log.Info("creating kafka superuser", zap.String("name", name))
	if err := p.makeUser(ctx, name, password); err != nil {
		return err
	}
	for _, grant := range []zkacl.Permission{
		{Principal: name, ResourceType: "topic", ResourceID: "*", Operation: "All"},
		{Principal: name, ResourceType: "group", ResourceID: "*", Operation: "All"},
		{Principal: name, ResourceType: "cluster", ResourceID: "kafka-cluster", Operation: "All"},
	} {
		if err := p.Grant(grant); err != nil {
			return err
		}
	}
	return nil
}

// CreateTenant provisions a realm's broker user with its derived password
// and grants All on the realm's topic and group prefixes.
func (p *Provisioner) CreateTenant(ctx context.Context, realm string) error {
	p.log.Info("creating kafka tenant", zap.String("realm", realm))
	password, err := p.TenantPassword(realm)
	if err != nil {
		return err
	}
	if err := p.makeUser(ctx, realm, password); err != nil {
		return err
	}
	prefix := realm + "-"
	for _, grant := range []zkacl.Permission{
		{Principal: realm, ResourceType: "topic", ResourceID: prefix, Operation: "All", Extended: true},
		{Principal: realm, ResourceType: "group", ResourceID: prefix, Operation: "All", Extended: true},
	} {
		if err := p.Grant(grant); err != nil {
			return err
		}
	}
	return nil
}

// makeUser creates the credential node and then waits out the broker's
// propagation delay so the grants that follow land on an existing user.
func (p *Provisioner) makeUser(ctx context.Context, name, password string) error {
	if err := p.zk.MakeUser(name, password); err != nil {
		return err
	}
	if err := p.journal.Append(journal.Record{
		Action:    journal.ActionUserCreated,
		Principal: name,
	}); err != nil {
		return err
	}
	return p.wait.Wait(ctx)
}

// Grant upserts a single permission and journals it.
func (p *Provisioner) Grant(grant zkacl.Permission) error {
	if err := p.zk.UpsertPermission(grant); err != nil {
		return err
	}
	return p.journal.Append(journal.Record{
		Action:    journal.ActionPermissionGranted,
		Principal: grant.Principal,
		Resource:  grant.ResourceType + ":" + grant.ResourceID,
		Operation: grant.Operation,
		Extended:  grant.Extended,
	})
}

// Revoke removes a single permission and journals it.
func (p *Provisioner) Revoke(grant zkacl.Permission) error {
	if err := p.zk.RemovePermission(grant); err != nil {
		return err
	}
	return p.journal.Append(journal.Record{
		Action:    journal.ActionPermissionRevoked,
		Principal: grant.Principal,
		Resource:  grant.ResourceType + ":" + grant.ResourceID,
		Operation: grant.Operation,
		Extended:  grant.Extended,
	})
}
