package postgres

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/anoopengineer/rss-bluesky-bridge/types"
)

// validIdentifier matches valid PostgreSQL unquoted identifiers.
// Must start with letter or underscore, followed by letters, digits, or underscores.
var validIdentifier = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// SSLMode represents PostgreSQL SSL connection modes.
type SSLMode string

const (
	SSLModeDisable    SSLMode = "disable"     // No SSL
	SSLModeAllow      SSLMode = "allow"       // Try non-SSL first, then SSL
	SSLModePrefer     SSLMode = "prefer"      // Try SSL first, then non-SSL (default)
	SSLModeRequire    SSLMode = "require"     // Only SSL (no certificate verification)
	SSLModeVerifyCA   SSLMode = "verify-ca"   // SSL with CA verification
	SSLModeVerifyFull SSLMode = "verify-full" // SSL with CA and hostname verification
)

// Option is a functional option for configuring a Client.
type Option func(*options)

type options struct {
	connString                string
	host                      string
	port                      int
	user                      string
	password                  string
	database                  string
	sslMode                   SSLMode
	poolMaxConnections        *int32
	poolMinConnections        *int32
	poolMaxConnectionLifetime *time.Duration
	poolMaxConnectionIdleTime *time.Duration
	poolHealthCheckPeriod     *time.Duration
	table                     string
	executionItemTimeToLive   time.Duration
	batchSize                 int
	ttlCleanupInterval        *time.Duration
	clock                     func() time.Time
	logger                    types.Logger
}

func newOptions() *options {
	defaultCleanupInterval := time.Hour

	return &options{
		host:                    "localhost",
		port:                    5432,
		sslMode:                 SSLModePrefer,
		table:                   "pipeline_items",
		executionItemTimeToLive: 24 * time.Hour,
		batchSize:               25,
		ttlCleanupInterval:      &defaultCleanupInterval,
		clock:                   time.Now,
		logger:                  types.NoopLogger{},
	}
}

// WithConnectionString sets a full postgres:// URL. When set, the host, port,
// user, password, database and SSL mode options are ignored.
func WithConnectionString(connString string) Option {
	return func(o *options) { o.connString = connString }
}

func WithHost(host string) Option {
	return func(o *options) { o.host = host }
}

func WithPort(port int) Option {
	return func(o *options) { o.port = port }
}

func WithUser(user string) Option {
	return func(o *options) { o.user = user }
}

func WithPassword(password string) Option {
	return func(o *options) { o.password = password }
}

func WithDatabase(database string) Option {
	return func(o *options) { o.database = database }
}

func WithSSLMode(mode SSLMode) Option {
	return func(o *options) { o.sslMode = mode }
}

func WithPoolMaxConnections(n int32) Option {
	return func(o *options) { o.poolMaxConnections = &n }
}

func WithPoolMinConnections(n int32) Option {
	return func(o *options) { o.poolMinConnections = &n }
}

func WithPoolMaxConnectionLifetime(d time.Duration) Option {
	return func(o *options) { o.poolMaxConnectionLifetime = &d }
}

func WithPoolMaxConnectionIdleTime(d time.Duration) Option {
	return func(o *options) { o.poolMaxConnectionIdleTime = &d }
}

func WithPoolHealthCheckPeriod(d time.Duration) Option {
	return func(o *options) { o.poolHealthCheckPeriod = &d }
}

// WithTable sets the name of the single table holding both execution items
// and record items. The default is "pipeline_items".
func WithTable(name string) Option {
	return func(o *options) { o.table = name }
}

// WithExecutionItemTimeToLive sets the TTL stamped on execution items that
// are written without one. The default is 24 hours.
func WithExecutionItemTimeToLive(d time.Duration) Option {
	return func(o *options) { o.executionItemTimeToLive = d }
}

// WithBatchSize sets how many rows are sent per pgx batch in CreateBatch and
// DeleteByRun. Must be between 1 and 25.
func WithBatchSize(n int) Option {
	return func(o *options) { o.batchSize = n }
}

// WithTTLCleanupInterval sets how often the background goroutine runs to
// physically delete expired rows. Defaults to 1 hour. The duration must be
// greater than zero.
func WithTTLCleanupInterval(d time.Duration) Option {
	return func(o *options) { o.ttlCleanupInterval = &d }
}

// WithTTLCleanupDisabled disables the background TTL cleanup goroutine.
// Expired rows are then kept until something else removes them.
func WithTTLCleanupDisabled() Option {
	return func(o *options) { o.ttlCleanupInterval = nil }
}

func WithClock(clock func() time.Time) Option {
	return func(o *options) { o.clock = clock }
}

// WithLogger sets the logger used by the background TTL cleanup.
func WithLogger(logger types.Logger) Option {
	return func(o *options) { o.logger = logger }
}

type dbRow struct {
	DataType   string
	IsNullable string
}

func (o *options) validate() error {
	if o.connString == "" {
		if o.port < 1 || o.port > 65535 {
			return fmt.Errorf("port must be between 1 and 65535, got %d", o.port)
		}

		if o.user == "" {
			return errors.New("user is required")
		}

		if o.database == "" {
			return errors.New("database is required")
		}

		if !o.sslMode.isValid() {
			return fmt.Errorf("invalid SSL mode: %s", o.sslMode)
		}
	}

	if err := validateTableName(o.table); err != nil {
		return fmt.Errorf("invalid table name: %w", err)
	}

	if o.executionItemTimeToLive <= 0 {
		return errors.New("execution item time to live must be greater than zero")
	}

	if o.batchSize < 1 || o.batchSize > 25 {
		return fmt.Errorf("batch size must be between 1 and 25, got %d", o.batchSize)
	}

	if o.ttlCleanupInterval != nil && *o.ttlCleanupInterval <= 0 {
		return errors.New("TTL cleanup interval must be positive")
	}

	if o.clock == nil {
		return errors.New("clock cannot be nil")
	}

	if o.logger == nil {
		return errors.New("logger cannot be nil")
	}

	return nil
}

func validateTableName(name string) error {
	if !validIdentifier.MatchString(name) {
		return fmt.Errorf("table name %q contains invalid characters", name)
	}

	return nil
}

// isValid returns true if the SSL mode is a valid PostgreSQL SSL mode.
func (s SSLMode) isValid() bool {
	switch s {
	case SSLModeDisable, SSLModeAllow, SSLModePrefer, SSLModeRequire, SSLModeVerifyCA, SSLModeVerifyFull:
		return true
	default:
		return false
	}
}

func (o *options) connectionString() string {
	if o.connString != "" {
		return o.connString
	}

	host := net.JoinHostPort(o.host, strconv.Itoa(o.port))

	user := url.QueryEscape(o.user)

	if o.password != "" {
		user += ":" + url.QueryEscape(o.password)
	}

	return fmt.Sprintf("postgres://%s@%s/%s?sslmode=%s", user, host, o.database, o.sslMode)
}

func (o *options) createStatements() []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (pk text NOT NULL, sk text NOT NULL, kind text NOT NULL, title text NULL, description text NULL, link text NULL, summary text NULL, ttl bigint NULL, pub_date text NULL, PRIMARY KEY (pk, sk));`, o.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_ttl_idx ON %s (ttl) WHERE ttl IS NOT NULL;`, o.table, o.table),
	}
}

func (o *options) dropStatements() []string {
	return []string{
		fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE;", o.table),
	}
}

func (o *options) verifyCurrentDatabaseVersion(actualRows map[string]*dbRow) error {
	expectedRows := map[string]*dbRow{
		o.table + ".pk":          {DataType: "text", IsNullable: "NO"},
		o.table + ".sk":          {DataType: "text", IsNullable: "NO"},
		o.table + ".kind":        {DataType: "text", IsNullable: "NO"},
		o.table + ".title":       {DataType: "text", IsNullable: "YES"},
		o.table + ".description": {DataType: "text", IsNullable: "YES"},
		o.table + ".link":        {DataType: "text", IsNullable: "YES"},
		o.table + ".summary":     {DataType: "text", IsNullable: "YES"},
		o.table + ".ttl":         {DataType: "bigint", IsNullable: "YES"},
		o.table + ".pub_date":    {DataType: "text", IsNullable: "YES"},
	}

	for id, expectedRow := range expectedRows {
		actual, ok := actualRows[id]
		if !ok {
			return fmt.Errorf("expected row '%s' not found in current database schema", id)
		}

		if !strings.EqualFold(actual.DataType, expectedRow.DataType) {
			return fmt.Errorf("data type mismatch for '%s': expected %s, got %s", id, expectedRow.DataType, actual.DataType)
		}

		if !strings.EqualFold(actual.IsNullable, expectedRow.IsNullable) {
			return fmt.Errorf("nullability mismatch for '%s': expected %s, got %s", id, expectedRow.IsNullable, actual.IsNullable)
		}
	}

	return nil
}
