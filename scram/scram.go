// Package scram derives Kafka SCRAM credentials in the exact form the
// broker's own admin tooling (kafka-configs) writes into ZooKeeper, so
// credentials provisioned here and credentials issued by the broker are
// interchangeable.
package scram

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"hash"

	"golang.org/x/crypto/pbkdf2"
)

// Mechanism selects the digest primitive for a credential.
type Mechanism int

const (
	SHA256 Mechanism = iota
	SHA512
)

const (
	// DefaultIterations matches the broker default for SCRAM credentials.
	DefaultIterations = 4096

	// defaultSaltLen is the length of a generated salt, in characters.
	defaultSaltLen = 25
)

const (
	labelClientKey = "Client Key"
	labelServerKey = "Server Key"
)

func (m Mechanism) String() string {
	switch m {
	case SHA256:
		return "SCRAM-SHA-256"
	case SHA512:
		return "SCRAM-SHA-512"
	}
	return fmt.Sprintf("Mechanism(%d)", int(m))
}

// hashNew returns the digest constructor for the mechanism.
func (m Mechanism) hashNew() func() hash.Hash {
	if m == SHA512 {
		return sha512.New
	}
	return sha256.New
}

// Mechanisms lists every mechanism a credential set carries.
func Mechanisms() []Mechanism {
	return []Mechanism{SHA256, SHA512}
}

// Credential holds the derived artifacts for one mechanism.
type Credential struct {
	Salt       []byte
	StoredKey  []byte
	ServerKey  []byte
	Iterations int
}

// Credentials maps each mechanism to its derived credential. Both entries
// of a set share the same password, salt and iteration count.
type Credentials map[Mechanism]Credential

// SaltedPassword runs the salted iterated derivation (Hi in RFC 5802,
// equivalent to PBKDF2 with a derived-key length of one digest block).
// Iterations at or below zero fall back to DefaultIterations.
func SaltedPassword(password, salt []byte, iterations int, m Mechanism) []byte {
	if iterations <= 0 {
		iterations = DefaultIterations
	}
	h := m.hashNew()
	return pbkdf2.Key(password, salt, iterations, h().Size(), h)
}

// ClientKey computes HMAC(saltedPassword, "Client Key").
func ClientKey(saltedPassword []byte, m Mechanism) []byte {
	return hmacSum(saltedPassword, []byte(labelClientKey), m)
}

// ServerKey computes HMAC(saltedPassword, "Server Key").
func ServerKey(saltedPassword []byte, m Mechanism) []byte {
	return hmacSum(saltedPassword, []byte(labelServerKey), m)
}

// StoredKey hashes the client key with the mechanism's plain digest.
func StoredKey(clientKey []byte, m Mechanism) []byte {
	h := m.hashNew()()
	h.Write(clientKey)
	return h.Sum(nil)
}

func hmacSum(key, msg []byte, m Mechanism) []byte {
	mac := hmac.New(m.hashNew(), key)
	mac.Write(msg)
	return mac.Sum(nil)
}

// Derive computes the credential for one mechanism. The derivation is pure:
// fixed inputs always produce byte-identical output.
func Derive(password, salt []byte, iterations int, m Mechanism) Credential {
	if iterations <= 0 {
		iterations = DefaultIterations
	}
	salted := SaltedPassword(password, salt, iterations, m)
	clientKey := ClientKey(salted, m)
	return Credential{
		Salt:       salt,
		StoredKey:  StoredKey(clientKey, m),
		ServerKey:  ServerKey(salted, m),
		Iterations: iterations,
	}
}

// Opt carries optional Generate inputs. A zero Opt means a fresh random
// salt and DefaultIterations.
type Opt struct {
	Salt       []byte
	Iterations int
}

// Generate derives credentials for every mechanism from one password. Both
// mechanisms share the same salt and iteration count, matching what
// kafka-configs writes for a user.
func Generate(password string, opt Opt) (Credentials, error) {
	salt := opt.Salt
	if len(salt) == 0 {
		var err error
		salt, err = RandomSalt(defaultSaltLen)
		if err != nil {
			return nil, err
		}
	}
	creds := make(Credentials, 2)
	for _, m := range Mechanisms() {
		creds[m] = Derive([]byte(password), salt, opt.Iterations, m)
	}
	return creds, nil
}

// RandomSalt returns n characters drawn uniformly from the printable ASCII
// set. The broker stores salts as base64 so any byte content would round
// trip, but printable salts match the admin tooling's output.
func RandomSalt(n int) ([]byte, error) {
	const printable = " !\"#$%&'()*+,-./0123456789:;<=>?@" +
		"ABCDEFGHIJKLMNOPQRSTUVWXYZ[\\]^_`" +
		"abcdefghijklmnopqrstuvwxyz{|}~"
	salt := make([]byte, n)
	buf := make([]byte, 1)
	for i := 0; i < n; {
		if _, err := rand.Read(buf); err != nil {
			return nil, fmt.Errorf("generate salt: %w", err)
		}
		// Reject bytes outside the largest multiple of the set size to
		// keep the draw uniform.
		if int(buf[0]) >= len(printable)*(256/len(printable)) {
			continue
		}
		salt[i] = printable[int(buf[0])%len(printable)]
		i++
	}
	return salt, nil
}

// TenantPassword derives the deterministic broker password for a tenant
// from its name and the shared administrative secret. The result is the
// hex form of PBKDF2-HMAC-SHA256(name+secret, "kafka", 4096 rounds).
func TenantPassword(name, sharedSecret string) string {
	dk := pbkdf2.Key([]byte(name+sharedSecret), []byte("kafka"), DefaultIterations, sha256.Size, sha256.New)
	return hex.EncodeToString(dk)
}

// SaltBase64 returns the salt as stored in ZooKeeper.
func (c Credential) SaltBase64() string {
	return base64.StdEncoding.EncodeToString(c.Salt)
}

// StoredKeyBase64 returns the stored key as stored in ZooKeeper.
func (c Credential) StoredKeyBase64() string {
	return base64.StdEncoding.EncodeToString(c.StoredKey)
}

// ServerKeyBase64 returns the server key as stored in ZooKeeper.
func (c Credential) ServerKeyBase64() string {
	return base64.StdEncoding.EncodeToString(c.ServerKey)
}
