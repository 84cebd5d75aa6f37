package scram

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
)

// StorePayload is the JSON value written to a user's credential node in
// ZooKeeper. Config maps the mechanism name to its property string.
type StorePayload struct {
	Version int               `json:"version"`
	Config  map[string]string `json:"config"`
}

// propertyKeys is the field order the broker expects in a credential
// property string.
var propertyKeys = []string{"salt", "stored_key", "server_key", "iterations"}

// Properties flattens the credential into the broker's comma-joined
// key=value form: salt, stored_key, server_key, iterations, in that order.
func (c Credential) Properties() string {
	return fmt.Sprintf("salt=%s,stored_key=%s,server_key=%s,iterations=%d",
		c.SaltBase64(), c.StoredKeyBase64(), c.ServerKeyBase64(), c.Iterations)
}

// StorePayload wraps every mechanism's property string in the version:1
// container stored at /config/users/<name>.
func (c Credentials) StorePayload() StorePayload {
	p := StorePayload{Version: 1, Config: make(map[string]string, len(c))}
	for m, cred := range c {
		p.Config[m.String()] = cred.Properties()
	}
	return p
}

// ParseProperties reads a broker credential property string back into a
// Credential. Unknown or missing keys are errors; the broker writes all
// four keys for every mechanism.
func ParseProperties(s string) (Credential, error) {
	var c Credential
	seen := make(map[string]bool, len(propertyKeys))
	for _, pair := range strings.Split(s, ",") {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			return Credential{}, fmt.Errorf("malformed credential property %q", pair)
		}
		var err error
		switch key {
		case "salt":
			c.Salt, err = base64.StdEncoding.DecodeString(value)
		case "stored_key":
			c.StoredKey, err = base64.StdEncoding.DecodeString(value)
		case "server_key":
			c.ServerKey, err = base64.StdEncoding.DecodeString(value)
		case "iterations":
			c.Iterations, err = strconv.Atoi(value)
		default:
			return Credential{}, fmt.Errorf("unknown credential property %q", key)
		}
		if err != nil {
			return Credential{}, fmt.Errorf("decode credential property %q: %w", key, err)
		}
		seen[key] = true
	}
	for _, key := range propertyKeys {
		if !seen[key] {
			return Credential{}, fmt.Errorf("credential property %q missing", key)
		}
	}
	return c, nil
}
