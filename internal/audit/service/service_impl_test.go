package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/drivelane/paycore/internal/audit/domain"
	"github.com/drivelane/paycore/internal/audit/repository"
	"github.com/drivelane/paycore/pkg/db/pagination"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (auditdomain.Service, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&auditdomain.AuditLog{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := NewService(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  repository.Provide(),
	})
	return svc, db
}

func TestRecord_Normalizes(t *testing.T) {
	svc, db := newTestService(t)

	err := svc.Record(context.Background(), auditdomain.Event{
		Action:    "payment.succeeded",
		TargetID:  "  42  ",
		IPAddress: "",
		Metadata:  map[string]any{"amount": 10_000, "": "dropped"},
	})
	require.NoError(t, err)

	var entry auditdomain.AuditLog
	require.NoError(t, db.First(&entry).Error)
	assert.Equal(t, auditdomain.CategorySecurity, entry.Category)
	assert.Equal(t, string(auditdomain.ActorTypeSystem), entry.ActorType)
	assert.Equal(t, "unknown", entry.TargetType)
	require.NotNil(t, entry.TargetID)
	assert.Equal(t, "42", *entry.TargetID)
	assert.Nil(t, entry.IPAddress)
	assert.Contains(t, entry.Metadata, "amount")
	assert.NotContains(t, entry.Metadata, "")
}

func TestRecord_RequiresAction(t *testing.T) {
	svc, _ := newTestService(t)

	err := svc.Record(context.Background(), auditdomain.Event{Action: "   "})
	assert.ErrorIs(t, err, auditdomain.ErrInvalidAction)
}

func TestList_FiltersAndPaginates(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	base := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	node, err := snowflake.NewNode(2)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		targetID := fmt.Sprintf("target-%d", i%2)
		require.NoError(t, db.Create(&auditdomain.AuditLog{
			ID:         node.Generate(),
			Category:   auditdomain.CategoryPayment,
			Action:     "payment.succeeded",
			ActorType:  string(auditdomain.ActorTypeCustomer),
			TargetType: "payment",
			TargetID:   &targetID,
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		}).Error)
	}

	resp, err := svc.List(ctx, auditdomain.ListAuditLogRequest{
		Pagination: pagination.Pagination{PageSize: 2},
	})
	require.NoError(t, err)
	require.Len(t, resp.AuditLogs, 2)
	assert.True(t, resp.HasMore)
	assert.NotEmpty(t, resp.NextPageToken)
	// Newest first.
	assert.True(t, resp.AuditLogs[0].CreatedAt.After(resp.AuditLogs[1].CreatedAt))

	next, err := svc.List(ctx, auditdomain.ListAuditLogRequest{
		Pagination: pagination.Pagination{PageSize: 2, PageToken: resp.NextPageToken},
	})
	require.NoError(t, err)
	require.Len(t, next.AuditLogs, 2)
	assert.True(t, resp.AuditLogs[1].CreatedAt.After(next.AuditLogs[0].CreatedAt))

	filtered, err := svc.List(ctx, auditdomain.ListAuditLogRequest{
		TargetID: "target-0",
	})
	require.NoError(t, err)
	assert.Len(t, filtered.AuditLogs, 3)
}

func TestList_RejectsBadInput(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.List(ctx, auditdomain.ListAuditLogRequest{
		Pagination: pagination.Pagination{PageToken: "not-a-token"},
	})
	assert.ErrorIs(t, err, auditdomain.ErrInvalidPageToken)

	start := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	end := start.Add(-time.Hour)
	_, err = svc.List(ctx, auditdomain.ListAuditLogRequest{StartAt: &start, EndAt: &end})
	assert.ErrorIs(t, err, auditdomain.ErrInvalidTimeRange)
}
