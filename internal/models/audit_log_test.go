package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEnforcementMetadata_Complete(t *testing.T) {
	md := NewEnforcementMetadata("spam", 7, "report-1", []string{"likes: boom"})

	assert.Equal(t, "spam", md["reason"])
	assert.Equal(t, 7, md["duration_days"])
	assert.Equal(t, "report-1", md["report_id"])
	assert.Equal(t, []string{"likes: boom"}, md["warnings"])
}

func TestNewEnforcementMetadata_OmitsZeroFields(t *testing.T) {
	md := NewEnforcementMetadata("abuse", 0, "", nil)

	assert.Equal(t, "abuse", md["reason"])
	assert.NotContains(t, md, "duration_days")
	assert.NotContains(t, md, "report_id")
	assert.NotContains(t, md, "warnings")
}

func TestAuditMetadata_ScanAndValue(t *testing.T) {
	original := AuditMetadata{"reason": "harassment"}

	v, err := original.Value()
	require.NoError(t, err)

	var scanned AuditMetadata
	require.NoError(t, scanned.Scan(v))
	assert.Equal(t, "harassment", scanned["reason"])

	var fromString AuditMetadata
	require.NoError(t, fromString.Scan(`{"reason":"spam"}`))
	assert.Equal(t, "spam", fromString["reason"])
}

func TestAuditMetadata_ScanNil(t *testing.T) {
	var md AuditMetadata
	require.NoError(t, md.Scan(nil))
	assert.NotNil(t, md)
	assert.Empty(t, md)
}

func TestAuditMetadata_ScanUnsupportedType(t *testing.T) {
	var md AuditMetadata
	assert.ErrorIs(t, md.Scan(42), ErrBadRequest)
}
