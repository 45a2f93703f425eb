package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/netbill/internal/clock"
	"github.com/smallbiznis/netbill/internal/customer/domain"
	"github.com/smallbiznis/netbill/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
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
		log:   p.Log.Named("customer.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateCustomerRequest) (domain.Customer, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Customer{}, domain.ErrInvalidName
	}
	if req.MonthlyFee < 0 {
		return domain.Customer{}, domain.ErrInvalidMonthlyFee
	}
	if req.CarriedDebt < 0 {
		return domain.Customer{}, domain.ErrInvalidDebt
	}

	now := s.clock.Now()
	customer := domain.Customer{
		ID:          s.genID.Generate(),
		Name:        name,
		Phone:       normalizePhone(req.Phone),
		Address:     strings.TrimSpace(req.Address),
		PackageName: strings.TrimSpace(req.PackageName),
		MonthlyFee:  req.MonthlyFee,
		CarriedDebt: req.CarriedDebt,
		Status:      domain.StatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Insert(ctx, s.db, &customer); err != nil {
		return domain.Customer{}, err
	}

	return customer, nil
}

func (s *Service) List(ctx context.Context, req domain.ListCustomerRequest) (domain.ListCustomerResponse, error) {
	filter := domain.ListCustomerFilter{
		Name: strings.ToLower(strings.TrimSpace(req.Name)),
	}
	if status := strings.TrimSpace(req.Status); status != "" {
		filter.Status = domain.Status(strings.ToLower(status))
		if !filter.Status.Valid() {
			return domain.ListCustomerResponse{}, domain.ErrInvalidStatus
		}
	}
	if req.PageToken != "" {
		if _, err := pagination.DecodeCursor(req.PageToken); err != nil {
			return domain.ListCustomerResponse{}, domain.ErrInvalidPageToken
		}
	}

	pageSize := pagination.ClampSize(req.PageSize)

	items, err := s.repo.List(ctx, s.db, filter, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  int(pageSize),
	})
	if err != nil {
		return domain.ListCustomerResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(customer *domain.Customer) string {
		return pagination.CursorAt(customer.ID.Int64(), customer.CreatedAt)
	})
	items = pagination.Trim(items, pageSize)

	customers := make([]domain.Customer, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		customers = append(customers, *item)
	}

	resp := domain.ListCustomerResponse{Customers: customers}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}

	return resp, nil
}

func (s *Service) GetByID(ctx context.Context, req domain.GetCustomerRequest) (domain.Customer, error) {
	id, err := s.parseID(req.ID)
	if err != nil {
		return domain.Customer{}, err
	}

	item, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Customer{}, err
	}
	if item == nil {
		return domain.Customer{}, domain.ErrNotFound
	}

	return *item, nil
}

func (s *Service) ListActive(ctx context.Context) ([]domain.Customer, error) {
	return s.repo.ListActive(ctx, s.db)
}

func (s *Service) SetCarriedDebt(ctx context.Context, req domain.SetCarriedDebtRequest) (domain.Customer, error) {
	id, err := s.parseID(req.ID)
	if err != nil {
		return domain.Customer{}, err
	}
	if req.Amount < 0 {
		return domain.Customer{}, domain.ErrInvalidDebt
	}

	rows, err := s.repo.UpdateCarriedDebt(ctx, s.db, id, req.Amount, s.clock.Now())
	if err != nil {
		return domain.Customer{}, err
	}
	if rows == 0 {
		return domain.Customer{}, domain.ErrNotFound
	}

	s.log.Info("carried debt updated",
		zap.String("customer_id", id.String()),
		zap.Int64("carried_debt", req.Amount),
	)
	return s.GetByID(ctx, domain.GetCustomerRequest{ID: req.ID})
}

func (s *Service) SetStatus(ctx context.Context, req domain.SetStatusRequest) (domain.Customer, error) {
	id, err := s.parseID(req.ID)
	if err != nil {
		return domain.Customer{}, err
	}
	status := domain.Status(strings.ToLower(strings.TrimSpace(req.Status)))
	if !status.Valid() {
		return domain.Customer{}, domain.ErrInvalidStatus
	}

	rows, err := s.repo.UpdateStatus(ctx, s.db, id, status, s.clock.Now())
	if err != nil {
		return domain.Customer{}, err
	}
	if rows == 0 {
		return domain.Customer{}, domain.ErrNotFound
	}
	return s.GetByID(ctx, domain.GetCustomerRequest{ID: req.ID})
}

func (s *Service) parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}

// normalizePhone keeps digits only and rewrites a leading 0 to the 62
// country code WhatsApp expects.
func normalizePhone(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	phone := b.String()
	if strings.HasPrefix(phone, "0") {
		phone = "62" + phone[1:]
	}
	return phone
}
