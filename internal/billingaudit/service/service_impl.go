package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/netbill/internal/auditcontext"
	"github.com/smallbiznis/netbill/internal/billingaudit/domain"
	"github.com/smallbiznis/netbill/internal/clock"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("billingaudit.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Append(ctx context.Context, req domain.AppendRequest) error {
	entry := s.build(ctx, req)
	if err := s.repo.Insert(ctx, s.db, &entry); err != nil {
		s.log.Warn("failed to write billing audit entry",
			zap.String("action", string(req.Action)),
			zap.Error(err),
		)
		return err
	}
	return nil
}

func (s *Service) build(ctx context.Context, req domain.AppendRequest) domain.Entry {
	payload := map[string]any{}
	for key, value := range req.Metadata {
		if key == "" {
			continue
		}
		payload[key] = value
	}
	if requestID := auditcontext.RequestIDFromContext(ctx); requestID != "" {
		payload["request_id"] = requestID
	}
	if ip := auditcontext.IPAddressFromContext(ctx); ip != "" {
		payload["ip_address"] = ip
	}

	actorType, actorID := auditcontext.ActorFromContext(ctx)
	if actorType == "" {
		actorType = auditcontext.ActorTypeSystem
	}

	entry := domain.Entry{
		ID:          s.genID.Generate(),
		Action:      req.Action,
		Description: strings.TrimSpace(req.Description),
		BillID:      req.BillID,
		CustomerID:  req.CustomerID,
		ActorType:   actorType,
		Metadata:    datatypes.JSONMap(payload),
		CreatedAt:   s.clock.Now(),
	}
	if actorID != "" {
		entry.ActorID = &actorID
	}
	if req.BillingMonth != 0 && req.BillingYear != 0 {
		month, year := req.BillingMonth, req.BillingYear
		entry.BillingMonth = &month
		entry.BillingYear = &year
	}
	return entry
}
