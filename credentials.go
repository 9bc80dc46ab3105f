package firebird

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	env "github.com/Netflix/go-env"
)

// Credentials is the connection bag a host's credential store hands over.
// The node passes it through to the driver and does not interpret it beyond
// rendering the DSN; fields the Go driver has no use for are still carried
// so hosts can round-trip their stored credential unchanged.
type Credentials struct {
	Host     string `env:"FIREBIRD_HOST,default=localhost"`
	Port     int    `env:"FIREBIRD_PORT,default=3050"`
	Database string `env:"FIREBIRD_DATABASE"`
	User     string `env:"FIREBIRD_USER,default=SYSDBA"`
	Password string `env:"FIREBIRD_PASSWORD"`
	Role     string `env:"FIREBIRD_ROLE"`

	// PageSize only matters when the driver creates the database file.
	PageSize int `env:"FIREBIRD_PAGE_SIZE"`

	// LowercaseKeys asks the driver to lowercase result column names, which
	// keeps output records addressable with the same keys the input items
	// use.
	LowercaseKeys bool `env:"FIREBIRD_LOWERCASE_KEYS"`

	// RetryInterval is the reconnect pause in milliseconds. Pass-through:
	// database/sql manages the pool itself, so nothing here acts on it.
	RetryInterval int `env:"FIREBIRD_RETRY_INTERVAL,default=1000"`
}

// CredentialSource supplies the credential bag for one invocation. Returning
// a nil bag (or a nil source on the invocation) fails the node fast with
// ErrNoCredentials before any connection attempt.
type CredentialSource interface {
	FirebirdCredentials() (*Credentials, error)
}

// StaticCredentials adapts a literal bag into a CredentialSource.
type StaticCredentials Credentials

// FirebirdCredentials returns a copy of the bag.
func (c StaticCredentials) FirebirdCredentials() (*Credentials, error) {
	out := Credentials(c)
	return &out, nil
}

// CredentialsFromEnv reads the bag from FIREBIRD_* environment variables.
func CredentialsFromEnv() (*Credentials, error) {
	var c Credentials
	if _, err := env.UnmarshalFromEnviron(&c); err != nil {
		return nil, fmt.Errorf("firebird: reading credentials from environment: %w", err)
	}
	return &c, nil
}

// validate rejects bags the driver cannot even attempt to use.
func (c *Credentials) validate() error {
	if c.Database == "" {
		return errors.New("firebird: credentials missing database path or alias")
	}
	return nil
}

// DSN renders the firebirdsql connection string:
//
//	user:password@host:port/database[?options]
//
// Dialect options (role, page_size, column_name_to_lower) are emitted only
// when set, in sorted order so the rendered string is deterministic.
func (c *Credentials) DSN() string {
	host := c.Host
	if host == "" {
		host = "localhost"
	}
	port := c.Port
	if port == 0 {
		port = 3050
	}

	var b strings.Builder
	b.WriteString(url.QueryEscape(c.User))
	b.WriteByte(':')
	b.WriteString(url.QueryEscape(c.Password))
	b.WriteByte('@')
	b.WriteString(host)
	b.WriteByte(':')
	b.WriteString(strconv.Itoa(port))
	b.WriteByte('/')
	// The separator doubles as the path root for absolute unix paths.
	b.WriteString(strings.TrimPrefix(c.Database, "/"))

	q := url.Values{}
	if c.Role != "" {
		q.Set("role", c.Role)
	}
	if c.PageSize > 0 {
		q.Set("page_size", strconv.Itoa(c.PageSize))
	}
	if c.LowercaseKeys {
		q.Set("column_name_to_lower", "true")
	}
	if enc := q.Encode(); enc != "" {
		b.WriteByte('?')
		b.WriteString(enc)
	}
	return b.String()
}
