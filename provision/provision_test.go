package provision

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ehealthafrica/gateway-manager/journal"
	"github.com/ehealthafrica/gateway-manager/scram"
	"github.com/ehealthafrica/gateway-manager/zkacl"
	"github.com/ehealthafrica/gateway-manager/zkmock"
)

func newTestProvisioner(t *testing.T, cfg Config) (*Provisioner, *zkmock.Store) {
	t.Helper()
	store := zkmock.New()
	for _, p := range []string{
		zkacl.UserConfigPath,
		zkacl.UserChangesPath,
		zkacl.ACLChangesPath,
		zkacl.ExtendedACLChangesPath,
	} {
		store.EnsurePath(p)
	}
	for _, rt := range []string{"Topic", "Group", "Cluster"} {
		store.EnsurePath(zkacl.ACLPath + "/" + rt)
		store.EnsurePath(zkacl.ExtendedACLPath + "/" + rt)
	}
	client := zkacl.NewClient(store, zkacl.Config{User: "zk-admin"})
	cfg.Wait = WaitPolicy{Disabled: true}
	return New(client, cfg), store
}

func TestCreateTenant(t *testing.T) {
	p, store := newTestProvisioner(t, Config{KafkaSecret: "supersecret"})
	require.NoError(t, p.CreateTenant(context.Background(), "tenant1"))

	// Credential node present with both mechanisms.
	var payload scram.StorePayload
	require.NoError(t, json.Unmarshal(store.Data("/config/users/tenant1"), &payload))
	require.Len(t, payload.Config, 2)

	// Extended grants on the realm's topic and group prefixes.
	for _, path := range []string{
		"/kafka-acl-extended/prefixed/Topic/tenant1-",
		"/kafka-acl-extended/prefixed/Group/tenant1-",
	} {
		var node struct {
			ACLs []map[string]string `json:"acls"`
		}
		require.NoError(t, json.Unmarshal(store.Data(path), &node), path)
		require.Len(t, node.ACLs, 1, path)
		assert.Equal(t, "User:tenant1", node.ACLs[0]["principal"])
		assert.Equal(t, "All", node.ACLs[0]["operation"])
	}

	// One user change, two extended ACL changes, strictly increasing.
	assert.True(t, store.Exists("/config/changes/config_change_0000000000"))
	assert.True(t, store.Exists("/kafka-acl-extended-changes/acl_changes_0000000000"))
	assert.True(t, store.Exists("/kafka-acl-extended-changes/acl_changes_0000000001"))
}

func TestCreateTenantRequiresSecret(t *testing.T) {
	p, _ := newTestProvisioner(t, Config{})
	err := p.CreateTenant(context.Background(), "tenant1")
	require.ErrorContains(t, err, "shared secret")
}

func TestCreateTenantDeterministicPassword(t *testing.T) {
	p, _ := newTestProvisioner(t, Config{KafkaSecret: "supersecret"})
	pw1, err := p.TenantPassword("tenant1")
	require.NoError(t, err)
	pw2, err := p.TenantPassword("tenant1")
	require.NoError(t, err)
	assert.Equal(t, pw1, pw2)
	assert.Equal(t, scram.TenantPassword("tenant1", "supersecret"), pw1)
}

func TestCreateSuperuser(t *testing.T) {
	p, store := newTestProvisioner(t, Config{})
	require.NoError(t, p.CreateSuperuser(context.Background(), "admin", "password"))

	assert.True(t, store.Exists("/config/users/admin"))
	assert.True(t, store.Exists("/kafka-acl/Topic/*"))
	assert.True(t, store.Exists("/kafka-acl/Group/*"))
	assert.True(t, store.Exists("/kafka-acl/Cluster/kafka-cluster"))
	// Superuser grants stay in the non-extended namespace.
	assert.False(t, store.Exists("/kafka-acl-extended/prefixed/Topic/*"))
}

func TestFlowsJournalActions(t *testing.T) {
	j, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	defer j.Close()

	p, _ := newTestProvisioner(t, Config{KafkaSecret: "s", Journal: j})
	require.NoError(t, p.CreateTenant(context.Background(), "tenant1"))
	require.NoError(t, p.Revoke(zkacl.Permission{
		Principal: "tenant1", ResourceType: "topic", ResourceID: "tenant1-",
		Operation: "All", Extended: true}))

	records, err := j.List(0)
	require.NoError(t, err)
	require.Len(t, records, 4) // user + 2 grants + revoke
	assert.Equal(t, journal.ActionPermissionRevoked, records[0].Action)
}

func TestWaitPolicy(t *testing.T) {
	// Disabled returns immediately.
	require.NoError(t, WaitPolicy{Disabled: true}.Wait(context.Background()))

	// A cancelled context aborts the wait.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := WaitPolicy{Delay: time.Minute}.Wait(ctx)
	require.ErrorIs(t, err, context.Canceled)

	// A short delay completes.
	require.NoError(t, WaitPolicy{Delay: time.Millisecond}.Wait(context.Background()))
}
