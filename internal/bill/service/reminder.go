package service

import (
	"context"

	billdomain "github.com/smallbiznis/netbill/internal/bill/domain"
	"go.uber.org/zap"
)

// SendReminder messages the customer about the bill's remaining balance.
func (s *Service) SendReminder(ctx context.Context, id string) (billdomain.ReminderResult, error) {
	bill, err := s.GetByID(ctx, id)
	if err != nil {
		return billdomain.ReminderResult{}, err
	}
	if bill.RemainingAmount <= 0 {
		return billdomain.ReminderResult{}, billdomain.ErrAlreadyPaid
	}

	msg := bill.Reminder(s.clock.Now())
	result := billdomain.ReminderResult{
		BillID:      bill.ID,
		BillNumber:  bill.BillNumber,
		Remaining:   bill.RemainingAmount,
		DaysOverdue: msg.DaysOverdue,
	}
	if err := s.notifier.NotifyPaymentReminder(ctx, msg); err != nil {
		s.log.Info("payment reminder not delivered",
			zap.String("bill_number", bill.BillNumber),
			zap.Error(err),
		)
		result.Message = err.Error()
		return result, nil
	}
	result.Delivered = true
	return result, nil
}
