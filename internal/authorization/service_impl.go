package authorization

import (
	"context"
	_ "embed"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"github.com/smallbiznis/netbill/internal/observability/logger"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

const (
	RoleAdmin     = "admin"
	RoleOperator  = "operator"
	RoleCollector = "collector"
	RoleViewer    = "viewer"
)

const (
	ObjectBill     = "bill"
	ObjectPayment  = "payment"
	ObjectCustomer = "customer"
	ObjectBilling  = "billing"
)

const (
	ActionBillView     = "bill.view"
	ActionBillGenerate = "bill.generate"
	ActionBillAdjust   = "bill.adjust"
	ActionBillRemind   = "bill.remind"

	ActionPaymentView   = "payment.view"
	ActionPaymentRecord = "payment.record"

	ActionCustomerView   = "customer.view"
	ActionCustomerCreate = "customer.create"
	ActionCustomerUpdate = "customer.update"

	ActionBillingReset = "billing.reset"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
}

type ServiceImpl struct {
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
}

// NewEnforcer loads policies persisted in casbin_rule and seeds the built-in
// role set.
func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	if err := enforcer.BuildRoleLinks(); err != nil {
		return nil, err
	}
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, role string, object string, action string) error {
	role = strings.ToLower(strings.TrimSpace(role))
	if role == "" {
		return ErrInvalidRole
	}

	allowed, err := s.enforcer.Enforce(subject(role), strings.TrimSpace(object), strings.TrimSpace(action))
	if err != nil {
		return err
	}
	if !allowed {
		logger.WithContext(ctx, s.log).Warn("authorization denied",
			zap.String("role", role),
			zap.String("object", object),
			zap.String("action", action),
		)
		return ErrForbidden
	}
	return nil
}

func subject(role string) string {
	return "role:" + role
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	policies := [][]string{
		// Read-only
		{subject(RoleViewer), ObjectBill, ActionBillView},
		{subject(RoleViewer), ObjectPayment, ActionPaymentView},
		{subject(RoleViewer), ObjectCustomer, ActionCustomerView},

		{subject(RoleCollector), ObjectPayment, ActionPaymentRecord},

		{subject(RoleOperator), ObjectBill, ActionBillGenerate},
		{subject(RoleOperator), ObjectBill, ActionBillAdjust},
		{subject(RoleOperator), ObjectBill, ActionBillRemind},
		{subject(RoleOperator), ObjectCustomer, ActionCustomerCreate},
		{subject(RoleOperator), ObjectCustomer, ActionCustomerUpdate},

		{subject(RoleAdmin), ObjectBilling, ActionBillingReset},
	}
	for _, policy := range policies {
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}

	// Each role inherits everything the role below it may do.
	groupings := [][]string{
		{subject(RoleCollector), subject(RoleViewer)},
		{subject(RoleOperator), subject(RoleCollector)},
		{subject(RoleAdmin), subject(RoleOperator)},
	}
	for _, grouping := range groupings {
		if _, err := enforcer.AddGroupingPolicy(grouping); err != nil {
			return err
		}
	}
	return nil
}
