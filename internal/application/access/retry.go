package access

import (
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// Classification of an operation error
type Classification int

const (
	// Fatal errors are returned to the caller without retrying
	Fatal Classification = iota
	// Retryable errors are sequence-number conflicts worth another attempt
	Retryable
)

func (c Classification) String() string {
	if c == Retryable {
		return "retryable"
	}
	return "fatal"
}

// DuplicateKeyCode is the SQLSTATE of a unique constraint violation
const DuplicateKeyCode = "23505"

// Default sequence-number constraints assigned by insert triggers
var DefaultSequenceConstraints = []string{
	"idx_contract_billing_periods_order_number_tenant",
	"idx_standalone_billing_periods_order_number_tenant",
}

// SQLStateError is implemented by driver errors that expose their SQLSTATE
type SQLStateError interface {
	SQLState() string
}

// RetryPolicy decides which mutation errors are retried and how long to wait
type RetryPolicy struct {
	// MaxAttempts counts every attempt including the first
	MaxAttempts      int
	BaseDelay        time.Duration
	DuplicateKeyCode string
	Constraints      []string
}

// DefaultRetryPolicy allows three attempts with 80ms linear backoff
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:      3,
		BaseDelay:        80 * time.Millisecond,
		DuplicateKeyCode: DuplicateKeyCode,
		Constraints:      append([]string(nil), DefaultSequenceConstraints...),
	}
}

// Classify reports whether err is a duplicate-key error on one of the known
// sequence-number constraints. Both the code and the constraint must match.
func (p RetryPolicy) Classify(err error) Classification {
	if err == nil {
		return Fatal
	}
	code, constraint, message := inspect(err)
	if code == "" || code != p.duplicateKeyCode() {
		return Fatal
	}
	for _, c := range p.Constraints {
		if c == "" {
			continue
		}
		if constraint == c || strings.Contains(message, c) {
			return Retryable
		}
	}
	return Fatal
}

// DelayForAttempt returns the wait after failed attempt n (1-based)
func (p RetryPolicy) DelayForAttempt(n int) time.Duration {
	if n < 1 {
		return 0
	}
	return time.Duration(n) * p.BaseDelay
}

func (p RetryPolicy) maxAttempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

func (p RetryPolicy) duplicateKeyCode() string {
	if p.DuplicateKeyCode == "" {
		return DuplicateKeyCode
	}
	return p.DuplicateKeyCode
}

// inspect extracts the SQLSTATE, constraint name and message from the driver
// errors the service can see: pgx (through gorm), lib/pq and anything
// exposing SQLState.
func inspect(err error) (code, constraint, message string) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code, pgErr.ConstraintName, pgErr.Message + " " + pgErr.Detail
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code), pqErr.Constraint, pqErr.Message + " " + pqErr.Detail
	}
	var stateErr SQLStateError
	if errors.As(err, &stateErr) {
		return stateErr.SQLState(), "", err.Error()
	}
	return "", "", err.Error()
}
