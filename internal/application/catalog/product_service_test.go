package catalog

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/revalya/tenantaccess/internal/application/access"
	"github.com/revalya/tenantaccess/internal/domain/catalog"
	"github.com/revalya/tenantaccess/internal/domain/tenant"
	"github.com/revalya/tenantaccess/internal/infrastructure/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// MockProductRepository is a mock implementation of ProductRepository
type MockProductRepository struct {
	mock.Mock
}

func (m *MockProductRepository) List(ctx context.Context, db *gorm.DB, tenantID string, filter catalog.ProductFilter) ([]catalog.Product, error) {
	args := m.Called(ctx, db, tenantID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]catalog.Product), args.Error(1)
}

type allowApplier struct{}

func (allowApplier) Apply(context.Context, *gorm.DB, string, string) (bool, error) { return true, nil }
func (allowApplier) Clear(context.Context, *gorm.DB) error                         { return nil }

func newTestService(t *testing.T) (*ProductService, *MockProductRepository) {
	t.Helper()
	exec, err := access.NewExecutor(access.Dependencies{Applier: allowApplier{}}, access.DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = exec.Close() })

	repo := new(MockProductRepository)
	return NewProductService(exec, repo), repo
}

func newSession(tenantID uuid.UUID, active bool) tenant.Session {
	return tenant.NewSession(&tenant.Tenant{ID: tenantID.String(), Active: active}, tenant.Actor{UserID: uuid.NewString()})
}

func TestListKey(t *testing.T) {
	tests := []struct {
		name   string
		filter catalog.ProductFilter
		want   cache.Key
	}{
		{"active", catalog.ProductFilter{ActiveOnly: true}, cache.Key{"products", "list", "active"}},
		{"all", catalog.ProductFilter{}, cache.Key{"products", "list", "all"}},
		{"search", catalog.ProductFilter{Search: " Widget "}, cache.Key{"products", "list", "all", "q:widget"}},
		{"limit", catalog.ProductFilter{ActiveOnly: true, Limit: 20}, cache.Key{"products", "list", "active", 20}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ListKey(tt.filter))
		})
	}
}

func TestProductService_List(t *testing.T) {
	svc, repo := newTestService(t)
	tenantID := uuid.New()
	filter := catalog.ProductFilter{ActiveOnly: true}
	products := []catalog.Product{{ID: uuid.New(), TenantID: tenantID, Code: "P-001", Status: catalog.ProductStatusActive}}
	repo.On("List", mock.Anything, mock.Anything, tenantID.String(), filter).Return(products, nil).Once()
	sess := newSession(tenantID, true)

	res := svc.List(context.Background(), sess, filter)

	require.NoError(t, res.Err)
	assert.Equal(t, access.StatusSuccess, res.Status)
	assert.Equal(t, products, res.Data)
	assert.Equal(t, cache.Key{"products", "list", "active", tenantID.String()}, res.Key)

	again := svc.List(context.Background(), sess, filter)
	assert.True(t, again.FromCache)
	repo.AssertExpectations(t)
}

func TestProductService_List_TenantsDoNotShareCache(t *testing.T) {
	svc, repo := newTestService(t)
	tenantA, tenantB := uuid.New(), uuid.New()
	filter := catalog.ProductFilter{ActiveOnly: true}
	repo.On("List", mock.Anything, mock.Anything, tenantA.String(), filter).
		Return([]catalog.Product{{ID: uuid.New(), TenantID: tenantA}}, nil).Once()
	repo.On("List", mock.Anything, mock.Anything, tenantB.String(), filter).
		Return([]catalog.Product{{ID: uuid.New(), TenantID: tenantB}}, nil).Once()

	a := svc.List(context.Background(), newSession(tenantA, true), filter)
	b := svc.List(context.Background(), newSession(tenantB, true), filter)

	require.Len(t, a.Data, 1)
	require.Len(t, b.Data, 1)
	assert.Equal(t, tenantA, a.Data[0].TenantID)
	assert.Equal(t, tenantB, b.Data[0].TenantID)
	assert.False(t, b.FromCache)
	repo.AssertExpectations(t)
}

func TestProductService_List_ForeignRowIsViolation(t *testing.T) {
	svc, repo := newTestService(t)
	tenantID := uuid.New()
	filter := catalog.ProductFilter{}
	repo.On("List", mock.Anything, mock.Anything, tenantID.String(), filter).
		Return([]catalog.Product{{ID: uuid.New(), TenantID: uuid.New()}}, nil)

	res := svc.List(context.Background(), newSession(tenantID, true), filter)

	assert.Equal(t, access.StatusError, res.Status)
	assert.ErrorIs(t, res.Err, access.ErrSecurityViolation)
	assert.Nil(t, res.Data)
}

func TestProductService_List_Disabled(t *testing.T) {
	svc, repo := newTestService(t)

	res := svc.List(context.Background(), newSession(uuid.New(), true), catalog.ProductFilter{}, access.WithEnabled(false))

	assert.Equal(t, access.StatusIdle, res.Status)
	repo.AssertNotCalled(t, "List")
}

func TestProductService_List_InactiveTenant(t *testing.T) {
	svc, repo := newTestService(t)

	res := svc.List(context.Background(), newSession(uuid.New(), false), catalog.ProductFilter{})

	assert.Equal(t, access.StatusIdle, res.Status)
	assert.NoError(t, res.Err)
	assert.Equal(t, access.ReasonTenantInactive, res.Decision.Reason)
	repo.AssertNotCalled(t, "List")
}
