// Package zkacl mutates the security subtree Kafka keeps in ZooKeeper:
// SCRAM credential nodes, ACL nodes, and the change-notification nodes
// brokers watch to pick up credential and permission updates. Node payloads
// and paths reproduce the broker's own on-disk format byte for byte.
package zkacl

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-zookeeper/zk"
	"go.uber.org/zap"

	"github.com/ehealthafrica/gateway-manager/scram"
)

// Kafka's fixed layout inside ZooKeeper.
const (
	UserConfigPath = "/config/users"

	UserChangesPath  = "/config/changes"
	userChangePrefix = "config_change_"

	ACLPath        = "/kafka-acl"
	ACLChangesPath = "/kafka-acl-changes"

	ExtendedACLPath        = "/kafka-acl-extended/prefixed"
	ExtendedACLChangesPath = "/kafka-acl-extended-changes"

	aclChangePrefix = "acl_changes_"
)

// seqWidth is the zero-padded width of change-node sequence numbers.
const seqWidth = 10

// Conn is the slice of the ZooKeeper session the client uses. *zk.Conn
// satisfies it; tests substitute zkmock.Store.
type Conn interface {
	Get(path string) ([]byte, *zk.Stat, error)
	Children(path string) ([]string, *zk.Stat, error)
	Create(path string, data []byte, flags int32, acl []zk.ACL) (string, error)
	Set(path string, data []byte, version int32) (*zk.Stat, error)
	Delete(path string, version int32) error
	GetACL(path string) ([]zk.ACL, *zk.Stat, error)
	Close()
}

// Config describes one administrative ZooKeeper session.
type Config struct {
	// Hosts are the ZooKeeper server addresses (host:port).
	Hosts []string

	// User and Password authenticate the administrative principal. The
	// same principal identifies the full-control ACL applied to every
	// node this client writes.
	User     string
	Password string

	// ACLScheme is the scheme of the administrative ACL entries. Kafka
	// deployments secured with SASL use "sasl"; the default.
	ACLScheme string

	// SessionTimeout defaults to 10s.
	SessionTimeout time.Duration

	// Logger defaults to a nop logger.
	Logger *zap.Logger
}

// Client performs credential and ACL mutations over one ZooKeeper session.
// Construct it once at process start and pass it into every operation;
// there is no package-level connection.
type Client struct {
	conn       Conn
	defaultACL []zk.ACL
	log        *zap.Logger
}

// Dial opens and authenticates the session. Authentication failure is
// fatal to the caller; these are one-shot provisioning processes with no
// retry policy.
func Dial(cfg Config) (*Client, error) {
	timeout := cfg.SessionTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	conn, _, err := zk.Connect(cfg.Hosts, timeout, zk.WithLogger(zkLogger{log.Sugar()}))
	if err != nil {
		return nil, fmt.Errorf("connect zookeeper %v: %w", cfg.Hosts, err)
	}
	if err := conn.AddAuth("digest", []byte(cfg.User+":"+cfg.Password)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("authenticate as %q: %w", cfg.User, err)
	}
	return NewClient(conn, cfg), nil
}

// NewClient wraps an existing session. Used directly by tests; production
// callers use Dial.
func NewClient(conn Conn, cfg Config) *Client {
	scheme := cfg.ACLScheme
	if scheme == "" {
		scheme = "sasl"
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		conn: conn,
		defaultACL: []zk.ACL{
			{Perms: zk.PermAll, Scheme: scheme, ID: cfg.User},
		},
		log: log,
	}
}

// Close terminates the session.
func (c *Client) Close() error {
	c.conn.Close()
	return nil
}

// MakeUser derives SCRAM credentials for the password and writes them to
// /config/users/<username>, replacing any existing value, then appends a
// user-change node so brokers reload the credentials. The broker applies
// the change asynchronously; callers must wait (see provision.WaitPolicy)
// before granting permissions that depend on the user existing.
func (c *Client) MakeUser(username, password string) error {
	creds, err := scram.Generate(password, scram.Opt{})
	if err != nil {
		return err
	}
	data, err := json.Marshal(creds.StorePayload())
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}
	path := UserConfigPath + "/" + username
	if err := c.createOrSet(path, data, c.defaultACL); err != nil {
		return fmt.Errorf("write credentials for %q: %w", username, err)
	}
	c.log.Info("wrote user credentials", zap.String("user", username))
	return c.reportUserChange(username)
}

// createOrSet writes a node as a full replace: create when absent, set when
// present. A node-exists race on create converts to a set rather than an
// error, which keeps every write idempotent under single-writer use.
func (c *Client) createOrSet(path string, data []byte, acl []zk.ACL) error {
	_, err := c.conn.Create(path, data, 0, acl)
	if errors.Is(err, zk.ErrNodeExists) {
		_, err = c.conn.Set(path, data, -1)
	}
	return err
}

// worldReadableACL is the admin ACL plus a world-read entry, used for every
// node broker processes must be able to observe without credentials.
func (c *Client) worldReadableACL() []zk.ACL {
	acl := make([]zk.ACL, 0, len(c.defaultACL)+1)
	acl = append(acl, c.defaultACL...)
	return append(acl, zk.WorldACL(zk.PermRead)...)
}

// zkLogger adapts zap to the zk library's Printf logger.
type zkLogger struct {
	s *zap.SugaredLogger
}

func (l zkLogger) Printf(format string, args ...interface{}) {
	l.s.Debugf(format, args...)
}
