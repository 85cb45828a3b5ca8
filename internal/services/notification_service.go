// internal/services/notification_service.go
package services

import (
	"context"
	"fmt"

	"github.com/javajoker/commission-backend/internal/models"
	"github.com/javajoker/commission-backend/internal/processor"
	"github.com/javajoker/commission-backend/internal/repository"
)

// NotificationService writes in-app notifications for payment lifecycle
// events. Email delivery is handled outside this service.
type NotificationService struct {
	repo repository.NotificationRepository
}

func NewNotificationService(repo repository.NotificationRepository) *NotificationService {
	return &NotificationService{repo: repo}
}

// Payment notifications
func (s *NotificationService) NotifyPaymentStatus(ctx context.Context, payment *models.Payment, status models.PaymentStatus) error {
	var (
		ntype    models.NotificationType
		title    string
		message  string
		priority = "medium"
	)

	amount := processor.CentsToAmount(payment.ValueCents)
	switch status {
	case models.PaymentStatusConfirmed:
		ntype = models.NotificationPaymentConfirmed
		title = "Payment Confirmed"
		message = fmt.Sprintf("Your %s payment of R$ %s was confirmed", payment.Kind, amount)
		priority = "low"
	case models.PaymentStatusOverdue:
		ntype = models.NotificationPaymentOverdue
		title = "Payment Overdue"
		message = fmt.Sprintf("Your %s payment of R$ %s is overdue. Store visibility is suspended until it is paid", payment.Kind, amount)
		priority = "high"
	case models.PaymentStatusFailed:
		ntype = models.NotificationPaymentFailed
		title = "Payment Failed"
		message = fmt.Sprintf("Your %s payment of R$ %s could not be processed", payment.Kind, amount)
		priority = "high"
	case models.PaymentStatusRefunded:
		ntype = models.NotificationPaymentRefunded
		title = "Payment Refunded"
		message = fmt.Sprintf("Your %s payment of R$ %s was refunded", payment.Kind, amount)
	case models.PaymentStatusCancelled:
		ntype = models.NotificationPaymentCancelled
		title = "Payment Cancelled"
		message = fmt.Sprintf("Your %s payment of R$ %s was cancelled", payment.Kind, amount)
	default:
		return nil
	}

	return s.create(ctx, &models.Notification{
		Type:        ntype,
		Title:       title,
		Message:     message,
		Priority:    priority,
		AffiliateID: &payment.AffiliateID,
		PaymentID:   &payment.ID,
	})
}

// Commission notifications
func (s *NotificationService) NotifyCommissionFailed(ctx context.Context, payment *models.Payment, cause error) error {
	return s.create(ctx, &models.Notification{
		Type:      models.NotificationCommissionFailed,
		Title:     "Commission Processing Failed",
		Message:   fmt.Sprintf("Commission for payment %s could not be paid out: %v", payment.ExternalID, cause),
		Priority:  "high",
		PaymentID: &payment.ID,
	})
}

func (s *NotificationService) create(ctx context.Context, n *models.Notification) error {
	if n.Status == "" {
		n.Status = "unread"
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}
