package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/esic-backend/internal/repo"
)

// ProtocolIssuer allocates the public tracking code of a new request. Issue
// runs inside the submission transaction; a rolled-back submission must not
// leave an issued protocol behind.
type ProtocolIssuer interface {
	Issue(ctx context.Context, tx *gorm.DB, submittedAt time.Time) (string, error)
}

// SequentialIssuer issues "<PREFIX>-<YYYY>-<NNNNNN>" codes numbered per
// calendar year (UTC) of submission.
type SequentialIssuer struct {
	Prefix string
}

// Issue implements ProtocolIssuer.
func (s SequentialIssuer) Issue(ctx context.Context, tx *gorm.DB, submittedAt time.Time) (string, error) {
	year := submittedAt.UTC().Year()
	seq, err := repo.NextProtocolSeq(ctx, tx, year)
	if err != nil {
		return "", fmt.Errorf("allocate protocol: %w", err)
	}
	return FormatProtocol(s.Prefix, year, seq), nil
}

// FormatProtocol renders a protocol code, e.g. FormatProtocol("ESIC", 2024, 1)
// is "ESIC-2024-000001".
func FormatProtocol(prefix string, year int, seq int64) string {
	return fmt.Sprintf("%s-%04d-%06d", prefix, year, seq)
}

// NormalizeProtocol trims and upper-cases a protocol typed by a citizen.
func NormalizeProtocol(p string) string {
	return strings.ToUpper(strings.TrimSpace(p))
}
